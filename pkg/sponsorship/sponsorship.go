// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sponsorship runs the transaction-fee reimbursement workflow:
// a user requests sponsorship against an ad, an operator verifies the
// backing ad view, and the user claims the reimbursement. Each user
// has at most one outstanding request.
package sponsorship

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"

	"github.com/luxfi/adledger/pkg/auth"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/metric"
	"github.com/luxfi/adledger/pkg/numeric"
	"github.com/luxfi/adledger/pkg/storage"
)

var (
	ErrRequestNotFound  = errors.New("sponsorship request not found")
	ErrNotRequester     = errors.New("caller is not the requester")
	ErrNotVerified      = errors.New("ad view not verified")
	ErrAlreadySponsored = errors.New("already sponsored")
	ErrFeeTooLow        = errors.New("fee amount below minimum")
	ErrPendingExists    = errors.New("pending sponsorship exists")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Params are the sponsorship limits.
type Params struct {
	MinFee uint64
}

// DefaultParams returns the platform defaults.
func DefaultParams() Params {
	return Params{MinFee: 5}
}

// Request is a stored fee-reimbursement claim. Verified and Sponsored
// only ever move false to true; a sponsored request is terminal.
type Request struct {
	ID        uint32        `json:"request_id"`
	User      ids.AccountID `json:"user"`
	AdID      uint32        `json:"ad_id"`
	FeeAmount uint64        `json:"fee_amount"`
	Verified  bool          `json:"verified"`
	Sponsored bool          `json:"sponsored"`
}

// Escrow applies sponsorship state transitions.
type Escrow struct {
	mu      sync.Mutex
	store   *storage.Store
	auth    auth.Authority
	journal *events.Journal
	metrics *metric.Metrics
	params  Params
	log     log.Logger
}

// New creates a sponsorship escrow. metrics may be nil.
func New(
	store *storage.Store,
	authority auth.Authority,
	journal *events.Journal,
	metrics *metric.Metrics,
	params Params,
	logger log.Logger,
) *Escrow {
	return &Escrow{
		store:   store,
		auth:    authority,
		journal: journal,
		metrics: metrics,
		params:  params,
		log:     logger,
	}
}

// RequestSponsorship opens a new claim for the user. Returns the
// allocated request id.
func (e *Escrow) RequestSponsorship(user ids.AccountID, adID uint32, feeAmount uint64) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if feeAmount < e.params.MinFee {
		return 0, e.reject(ErrFeeTooLow)
	}

	pending, err := e.store.Has(storage.KeyAccount(storage.PrefixPending, user))
	if err != nil {
		return 0, fmt.Errorf("reading pending index: %w", err)
	}
	if pending {
		return 0, e.reject(ErrPendingExists)
	}

	requestID, err := e.nextRequestID()
	if err != nil {
		return 0, err
	}

	request := Request{
		ID:        requestID,
		User:      user,
		AdID:      adID,
		FeeAmount: feeAmount,
	}

	batch := e.store.NewBatch()
	if err := e.stageRequest(batch, request); err != nil {
		return 0, err
	}
	if err := batch.Put(storage.KeyAccount(storage.PrefixPending, user), storage.EncodeU32(requestID)); err != nil {
		return 0, err
	}
	if err := batch.Put(storage.CounterKey(storage.CounterRequestID), storage.EncodeU32(requestID+1)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("writing request: %w", err)
	}

	e.journal.Append(events.SponsorshipRequested{
		RequestID: requestID,
		User:      user,
		AdID:      adID,
		FeeAmount: feeAmount,
	})
	if e.metrics != nil {
		e.metrics.SponsorshipsRequested.Inc()
	}

	e.log.Info("sponsorship requested",
		log.Uint32("request", requestID),
		log.Stringer("user", user),
		log.Uint32("ad", adID),
		log.Uint64("fee", feeAmount))

	return requestID, nil
}

// VerifyAdView marks a request verified. Operator-only; the operator
// stands in for the oracle attesting that the ad view happened.
func (e *Escrow) VerifyAdView(caller ids.AccountID, requestID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.Privileged(caller) {
		return e.reject(ErrUnauthorized)
	}

	request, err := e.request(requestID)
	if err != nil {
		return err
	}

	request.Verified = true

	batch := e.store.NewBatch()
	if err := e.stageRequest(batch, request); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	e.journal.Append(events.AdViewVerified{RequestID: requestID, User: request.User})
	if e.metrics != nil {
		e.metrics.AdViewsVerified.Inc()
	}

	e.log.Info("ad view verified", log.Uint32("request", requestID))

	return nil
}

// ReimburseFee pays out a verified request. Only the requester can
// claim, exactly once; the fee accumulates into the ad's sponsored
// total and the user's pending slot frees up.
func (e *Escrow) ReimburseFee(caller ids.AccountID, requestID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	request, err := e.request(requestID)
	if err != nil {
		return err
	}
	if request.User != caller {
		return e.reject(ErrNotRequester)
	}
	if !request.Verified {
		return e.reject(ErrNotVerified)
	}
	if request.Sponsored {
		return e.reject(ErrAlreadySponsored)
	}

	request.Sponsored = true

	total, err := e.totalSponsored(request.AdID)
	if err != nil {
		return err
	}
	total = numeric.SatAdd64(total, request.FeeAmount)

	batch := e.store.NewBatch()
	if err := e.stageRequest(batch, request); err != nil {
		return err
	}
	if err := batch.Put(storage.KeyU32(storage.PrefixTotalSponsored, request.AdID), storage.EncodeU64(total)); err != nil {
		return err
	}
	if err := batch.Delete(storage.KeyAccount(storage.PrefixPending, caller)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	e.journal.Append(events.FeeSponsored{
		RequestID: requestID,
		User:      caller,
		Amount:    request.FeeAmount,
	})
	if e.metrics != nil {
		e.metrics.FeesSponsored.Inc()
	}

	e.log.Info("fee sponsored",
		log.Uint32("request", requestID),
		log.Stringer("user", caller),
		log.Uint64("amount", request.FeeAmount))

	return nil
}

// CancelSponsorship withdraws a not-yet-sponsored request and clears
// the user's pending slot.
func (e *Escrow) CancelSponsorship(caller ids.AccountID, requestID uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	request, err := e.request(requestID)
	if err != nil {
		return err
	}
	if request.User != caller {
		return e.reject(ErrNotRequester)
	}
	if request.Sponsored {
		return e.reject(ErrAlreadySponsored)
	}

	batch := e.store.NewBatch()
	if err := batch.Delete(storage.KeyU32(storage.PrefixRequest, requestID)); err != nil {
		return err
	}
	if err := batch.Delete(storage.KeyAccount(storage.PrefixPending, caller)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("removing request: %w", err)
	}

	e.journal.Append(events.SponsorshipCancelled{RequestID: requestID})
	if e.metrics != nil {
		e.metrics.SponsorshipsCancelled.Inc()
	}

	e.log.Info("sponsorship cancelled", log.Uint32("request", requestID))

	return nil
}

// Request returns a stored sponsorship request.
func (e *Escrow) Request(requestID uint32) (Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.request(requestID)
}

// Pending returns the user's outstanding request id, if any.
func (e *Escrow) Pending(user ids.AccountID) (uint32, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.store.Get(storage.KeyAccount(storage.PrefixPending, user))
	if errors.Is(err, database.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading pending index: %w", err)
	}
	requestID, err := storage.DecodeU32(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decoding pending index: %w", err)
	}
	return requestID, true, nil
}

// TotalSponsored returns the accumulated sponsored fees for an ad.
func (e *Escrow) TotalSponsored(adID uint32) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.totalSponsored(adID)
}

func (e *Escrow) nextRequestID() (uint32, error) {
	raw, err := e.store.Get(storage.CounterKey(storage.CounterRequestID))
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter: %w", err)
	}
	next, err := storage.DecodeU32(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding counter: %w", err)
	}
	return next, nil
}

func (e *Escrow) request(requestID uint32) (Request, error) {
	raw, err := e.store.Get(storage.KeyU32(storage.PrefixRequest, requestID))
	if errors.Is(err, database.ErrNotFound) {
		return Request{}, e.reject(ErrRequestNotFound)
	}
	if err != nil {
		return Request{}, fmt.Errorf("reading request: %w", err)
	}

	var request Request
	if err := json.Unmarshal(raw, &request); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return request, nil
}

func (e *Escrow) totalSponsored(adID uint32) (uint64, error) {
	raw, err := e.store.Get(storage.KeyU32(storage.PrefixTotalSponsored, adID))
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading sponsored total: %w", err)
	}
	total, err := storage.DecodeU64(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding sponsored total: %w", err)
	}
	return total, nil
}

func (e *Escrow) stageRequest(batch database.Batch, request Request) error {
	raw, err := json.Marshal(request)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyU32(storage.PrefixRequest, request.ID), raw)
}

func (e *Escrow) reject(err error) error {
	if e.metrics != nil {
		e.metrics.TransitionsRejected.WithLabelValues("sponsorship").Inc()
	}
	return err
}

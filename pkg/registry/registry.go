// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry is the advertiser side of the ledger: onboarding,
// escrowed deposits, and profile lifecycle.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"

	"github.com/luxfi/adledger/pkg/bank"
	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/metric"
	"github.com/luxfi/adledger/pkg/numeric"
	"github.com/luxfi/adledger/pkg/storage"
)

var (
	ErrAlreadyRegistered   = errors.New("advertiser already registered")
	ErrNotRegistered       = errors.New("advertiser not registered")
	ErrDepositTooLow       = errors.New("deposit below minimum")
	ErrNameTooLong         = errors.New("advertiser name too long")
	ErrInsufficientBalance = errors.New("insufficient balance for deposit")
	ErrActiveAds           = errors.New("cannot withdraw deposit while ads are active")
)

// Params are the registry limits. They correspond to the platform's
// configured constants, not to per-request input.
type Params struct {
	MinDeposit uint64
	MaxNameLen int
}

// DefaultParams returns the platform defaults.
func DefaultParams() Params {
	return Params{
		MinDeposit: 100,
		MaxNameLen: 64,
	}
}

// Profile is the stored advertiser record.
type Profile struct {
	Account      ids.AccountID `json:"account"`
	Name         string        `json:"name"`
	RegisteredAt int64         `json:"registered_at"`
	Deposit      uint64        `json:"deposit"`
	Active       bool          `json:"active"`
	TotalFunded  uint64        `json:"total_funded"`
	TotalAds     uint32        `json:"total_ads"`
	ActiveAds    uint32        `json:"active_ads"`
}

// Registry applies advertiser state transitions. Each public operation
// is one atomic step: it either commits all of its writes and emits
// its event, or fails with no state change.
type Registry struct {
	mu      sync.Mutex
	store   *storage.Store
	bank    bank.Ledger
	journal *events.Journal
	metrics *metric.Metrics
	params  Params
	log     log.Logger
	now     func() time.Time
}

// New creates a registry. metrics may be nil.
func New(
	store *storage.Store,
	balances bank.Ledger,
	journal *events.Journal,
	metrics *metric.Metrics,
	params Params,
	logger log.Logger,
) *Registry {
	return &Registry{
		store:   store,
		bank:    balances,
		journal: journal,
		metrics: metrics,
		params:  params,
		log:     logger,
		now:     time.Now,
	}
}

// Register onboards a new advertiser, escrowing deposit through the
// balance ledger.
func (r *Registry) Register(caller ids.AccountID, name string, deposit uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.store.Has(storage.KeyAccount(storage.PrefixProfile, caller))
	if err != nil {
		return fmt.Errorf("reading profile: %w", err)
	}
	if exists {
		return r.reject(ErrAlreadyRegistered)
	}
	if deposit < r.params.MinDeposit {
		return r.reject(ErrDepositTooLow)
	}
	if len(name) > r.params.MaxNameLen {
		return r.reject(ErrNameTooLong)
	}
	if r.bank.FreeBalance(caller) < deposit {
		return r.reject(ErrInsufficientBalance)
	}

	if err := r.bank.Reserve(caller, deposit); err != nil {
		return r.reject(ErrInsufficientBalance)
	}

	profile := Profile{
		Account:      caller,
		Name:         name,
		RegisteredAt: r.now().Unix(),
		Deposit:      deposit,
		Active:       true,
	}

	batch := r.store.NewBatch()
	if err := r.stageProfile(batch, profile); err == nil {
		// Legacy membership flag, kept for older readers of the store.
		err = batch.Put(storage.KeyAccount(storage.PrefixMember, caller), []byte{1})
		if err == nil {
			err = batch.Write()
		}
	} else {
		err = fmt.Errorf("staging profile: %w", err)
	}
	if err != nil {
		r.bank.Unreserve(caller, deposit)
		return err
	}

	r.journal.Append(events.AdvertiserRegistered{Advertiser: caller, Deposit: deposit})
	if r.metrics != nil {
		r.metrics.AdvertisersRegistered.Inc()
		r.metrics.DepositsReserved.Add(float64(deposit))
	}

	r.log.Info("advertiser registered",
		log.Stringer("advertiser", caller),
		log.Uint64("deposit", deposit))

	return nil
}

// IncreaseDeposit reserves an additional amount and adds it to the
// stored deposit.
func (r *Registry) IncreaseDeposit(caller ids.AccountID, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.profile(caller)
	if err != nil {
		return err
	}
	if !profile.Active {
		return r.reject(ErrNotRegistered)
	}
	if r.bank.FreeBalance(caller) < amount {
		return r.reject(ErrInsufficientBalance)
	}

	if err := r.bank.Reserve(caller, amount); err != nil {
		return r.reject(ErrInsufficientBalance)
	}

	profile.Deposit = numeric.SatAdd64(profile.Deposit, amount)

	batch := r.store.NewBatch()
	if err := r.stageProfile(batch, profile); err == nil {
		err = batch.Write()
	}
	if err != nil {
		r.bank.Unreserve(caller, amount)
		return fmt.Errorf("writing profile: %w", err)
	}

	r.journal.Append(events.DepositIncreased{Advertiser: caller, Amount: amount})
	if r.metrics != nil {
		r.metrics.DepositsReserved.Add(float64(amount))
	}

	r.log.Info("deposit increased",
		log.Stringer("advertiser", caller),
		log.Uint64("amount", amount))

	return nil
}

// Deregister removes the advertiser and releases the full escrowed
// deposit. Fails while any of the advertiser's ads is still active.
func (r *Registry) Deregister(caller ids.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.profile(caller)
	if err != nil {
		return err
	}
	if profile.ActiveAds > 0 {
		return r.reject(ErrActiveAds)
	}

	refund := profile.Deposit

	batch := r.store.NewBatch()
	if err := batch.Delete(storage.KeyAccount(storage.PrefixProfile, caller)); err != nil {
		return err
	}
	if err := batch.Delete(storage.KeyAccount(storage.PrefixMember, caller)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("removing profile: %w", err)
	}

	r.bank.Unreserve(caller, refund)

	r.journal.Append(events.AdvertiserDeregistered{Advertiser: caller, Refunded: refund})
	if r.metrics != nil {
		r.metrics.AdvertisersDeregistered.Inc()
	}

	r.log.Info("advertiser deregistered",
		log.Stringer("advertiser", caller),
		log.Uint64("refunded", refund))

	return nil
}

// Profile returns the stored profile for an account.
func (r *Registry) Profile(account ids.AccountID) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.profile(account)
}

// IsActive reports whether the account has an active profile.
func (r *Registry) IsActive(account ids.AccountID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.profile(account)
	return err == nil && profile.Active
}

// StageAdSubmitted validates the submitting advertiser and stages the
// profile side of one ad submission (funded total, ad counts) onto the
// caller's batch. The catalog commits the batch, keeping the whole
// submission a single transition.
func (r *Registry) StageAdSubmitted(batch database.Batch, advertiser ids.AccountID, funding uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.profile(advertiser)
	if err != nil {
		return err
	}
	if !profile.Active {
		return ErrNotRegistered
	}

	profile.TotalFunded = numeric.SatAdd64(profile.TotalFunded, funding)
	profile.TotalAds = numeric.SatAdd32(profile.TotalAds, 1)
	profile.ActiveAds = numeric.SatAdd32(profile.ActiveAds, 1)

	return r.stageProfile(batch, profile)
}

// StageAdDeactivated stages the active-ad count decrement for one ad
// deactivation onto the caller's batch.
func (r *Registry) StageAdDeactivated(batch database.Batch, advertiser ids.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, err := r.profile(advertiser)
	if err != nil {
		return err
	}

	profile.ActiveAds = numeric.SatSub32(profile.ActiveAds, 1)

	return r.stageProfile(batch, profile)
}

func (r *Registry) profile(account ids.AccountID) (Profile, error) {
	raw, err := r.store.Get(storage.KeyAccount(storage.PrefixProfile, account))
	if errors.Is(err, database.ErrNotFound) {
		return Profile{}, r.reject(ErrNotRegistered)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return profile, nil
}

func (r *Registry) stageProfile(batch database.Batch, profile Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyAccount(storage.PrefixProfile, profile.Account), raw)
}

func (r *Registry) reject(err error) error {
	if r.metrics != nil {
		r.metrics.TransitionsRejected.WithLabelValues("registry").Inc()
	}
	return err
}

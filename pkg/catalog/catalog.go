// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package catalog is the ad inventory side of the ledger: ad spots,
// ad records, and their activation state.
package catalog

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
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/storage"
)

var (
	ErrSpotNotFound       = errors.New("ad spot not found")
	ErrSpotNotAvailable   = errors.New("ad spot not available")
	ErrAdNotFound         = errors.New("ad not found")
	ErrNameTooLong        = errors.New("ad name too long")
	ErrDescriptionTooLong = errors.New("ad description too long")
	ErrContentRefTooLong  = errors.New("content reference too long")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Params are the catalog's bounded-length limits.
type Params struct {
	MaxNameLen        int
	MaxDescriptionLen int
	MaxContentRefLen  int
}

// DefaultParams returns the platform defaults.
func DefaultParams() Params {
	return Params{
		MaxNameLen:        64,
		MaxDescriptionLen: 256,
		MaxContentRefLen:  64,
	}
}

// Spot is a sellable placement slot. A spot hosts at most one ad; it
// is marked unavailable on the first successful submission and is not
// reset by this ledger.
type Spot struct {
	ID        uint32 `json:"spot_id"`
	Available bool   `json:"available"`
}

// Ad is a submitted advertisement. RemainingBudget is recorded at
// submission; nothing in this ledger draws it down afterwards.
type Ad struct {
	ID              uint32        `json:"ad_id"`
	Advertiser      ids.AccountID `json:"advertiser"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	ContentRef      string        `json:"content_ref"`
	Funding         uint64        `json:"funding"`
	RemainingBudget uint64        `json:"remaining_budget"`
	Views           uint64        `json:"views"`
	Active          bool          `json:"active"`
}

// Catalog applies inventory state transitions.
type Catalog struct {
	mu       sync.Mutex
	store    *storage.Store
	registry *registry.Registry
	auth     auth.Authority
	journal  *events.Journal
	metrics  *metric.Metrics
	params   Params
	log      log.Logger
}

// New creates a catalog. metrics may be nil.
func New(
	store *storage.Store,
	reg *registry.Registry,
	authority auth.Authority,
	journal *events.Journal,
	metrics *metric.Metrics,
	params Params,
	logger log.Logger,
) *Catalog {
	return &Catalog{
		store:    store,
		registry: reg,
		auth:     authority,
		journal:  journal,
		metrics:  metrics,
		params:   params,
		log:      logger,
	}
}

// CreateSpot allocates the next spot id and marks it available.
// Operator-only.
func (c *Catalog) CreateSpot(caller ids.AccountID) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.auth.Privileged(caller) {
		return 0, c.reject(ErrUnauthorized)
	}

	spotID, err := c.nextID(storage.CounterSpotID)
	if err != nil {
		return 0, err
	}

	spot := Spot{ID: spotID, Available: true}

	batch := c.store.NewBatch()
	if err := c.stageSpot(batch, spot); err != nil {
		return 0, err
	}
	if err := batch.Put(storage.CounterKey(storage.CounterSpotID), storage.EncodeU32(spotID+1)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("writing spot: %w", err)
	}

	c.journal.Append(events.SpotCreated{SpotID: spotID})
	if c.metrics != nil {
		c.metrics.SpotsCreated.Inc()
	}

	c.log.Info("ad spot created", log.Uint32("spot", spotID))

	return spotID, nil
}

// SubmitAd stores a new ad record against an available spot, marks the
// spot unavailable, and credits the advertiser's funded totals. The
// stated funding is recorded as the ad's budget; no balance is moved
// or locked here.
func (c *Catalog) SubmitAd(
	caller ids.AccountID,
	spotID uint32,
	name string,
	description string,
	contentRef string,
	funding uint64,
) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.IsActive(caller) {
		return 0, c.reject(registry.ErrNotRegistered)
	}

	spot, err := c.spot(spotID)
	if err != nil {
		return 0, err
	}
	if !spot.Available {
		return 0, c.reject(ErrSpotNotAvailable)
	}

	if len(name) > c.params.MaxNameLen {
		return 0, c.reject(ErrNameTooLong)
	}
	if len(description) > c.params.MaxDescriptionLen {
		return 0, c.reject(ErrDescriptionTooLong)
	}
	if len(contentRef) > c.params.MaxContentRefLen {
		return 0, c.reject(ErrContentRefTooLong)
	}

	adID, err := c.nextID(storage.CounterAdID)
	if err != nil {
		return 0, err
	}

	ad := Ad{
		ID:              adID,
		Advertiser:      caller,
		Name:            name,
		Description:     description,
		ContentRef:      contentRef,
		Funding:         funding,
		RemainingBudget: funding,
		Active:          true,
	}
	spot.Available = false

	batch := c.store.NewBatch()
	if err := c.registry.StageAdSubmitted(batch, caller, funding); err != nil {
		return 0, c.reject(err)
	}
	if err := c.stageAd(batch, ad); err != nil {
		return 0, err
	}
	if err := c.stageSpot(batch, spot); err != nil {
		return 0, err
	}
	if err := batch.Put(storage.CounterKey(storage.CounterAdID), storage.EncodeU32(adID+1)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("writing ad: %w", err)
	}

	c.journal.Append(events.AdSubmitted{AdID: adID, Advertiser: caller, SpotID: spotID})
	if c.metrics != nil {
		c.metrics.AdsSubmitted.Inc()
	}

	c.log.Info("ad submitted",
		log.Uint32("ad", adID),
		log.Stringer("advertiser", caller),
		log.Uint32("spot", spotID),
		log.Uint64("funding", funding))

	return adID, nil
}

// DeactivateAd sets an ad inactive. Only the owning advertiser may
// deactivate. The occupied spot stays unavailable.
func (c *Catalog) DeactivateAd(caller ids.AccountID, adID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ad, err := c.ad(adID)
	if err != nil {
		return err
	}
	if ad.Advertiser != caller {
		return c.reject(ErrUnauthorized)
	}

	wasActive := ad.Active
	ad.Active = false

	batch := c.store.NewBatch()
	if wasActive {
		if err := c.registry.StageAdDeactivated(batch, caller); err != nil {
			return err
		}
	}
	if err := c.stageAd(batch, ad); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing ad: %w", err)
	}

	c.journal.Append(events.AdDeactivated{AdID: adID})
	if c.metrics != nil {
		c.metrics.AdsDeactivated.Inc()
	}

	c.log.Info("ad deactivated", log.Uint32("ad", adID))

	return nil
}

// Spot returns a stored ad spot.
func (c *Catalog) Spot(spotID uint32) (Spot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.spot(spotID)
}

// Ad returns a stored ad record.
func (c *Catalog) Ad(adID uint32) (Ad, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ad(adID)
}

func (c *Catalog) nextID(counter byte) (uint32, error) {
	raw, err := c.store.Get(storage.CounterKey(counter))
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

func (c *Catalog) spot(spotID uint32) (Spot, error) {
	raw, err := c.store.Get(storage.KeyU32(storage.PrefixSpot, spotID))
	if errors.Is(err, database.ErrNotFound) {
		return Spot{}, c.reject(ErrSpotNotFound)
	}
	if err != nil {
		return Spot{}, fmt.Errorf("reading spot: %w", err)
	}

	var spot Spot
	if err := json.Unmarshal(raw, &spot); err != nil {
		return Spot{}, fmt.Errorf("decoding spot: %w", err)
	}
	return spot, nil
}

func (c *Catalog) ad(adID uint32) (Ad, error) {
	raw, err := c.store.Get(storage.KeyU32(storage.PrefixAd, adID))
	if errors.Is(err, database.ErrNotFound) {
		return Ad{}, c.reject(ErrAdNotFound)
	}
	if err != nil {
		return Ad{}, fmt.Errorf("reading ad: %w", err)
	}

	var ad Ad
	if err := json.Unmarshal(raw, &ad); err != nil {
		return Ad{}, fmt.Errorf("decoding ad: %w", err)
	}
	return ad, nil
}

func (c *Catalog) stageSpot(batch database.Batch, spot Spot) error {
	raw, err := json.Marshal(spot)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyU32(storage.PrefixSpot, spot.ID), raw)
}

func (c *Catalog) stageAd(batch database.Batch, ad Ad) error {
	raw, err := json.Marshal(ad)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyU32(storage.PrefixAd, ad.ID), raw)
}

func (c *Catalog) reject(err error) error {
	if c.metrics != nil {
		c.metrics.TransitionsRejected.WithLabelValues("catalog").Inc()
	}
	return err
}

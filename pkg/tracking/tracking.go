// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tracking records ad views and clicks and aggregates per-ad
// metrics. Ad ids are taken as opaque keys; this ledger deliberately
// does not check them against the catalog.
package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/shopspring/decimal"

	"github.com/luxfi/adledger/pkg/events"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/log"
	"github.com/luxfi/adledger/pkg/metric"
	"github.com/luxfi/adledger/pkg/numeric"
	"github.com/luxfi/adledger/pkg/storage"
)

var (
	ErrViewNotFound         = errors.New("view record not found")
	ErrViewAlreadyCompleted = errors.New("view already completed")
	ErrNotViewer            = errors.New("caller is not the original viewer")
)

// ViewRecord is one recorded ad impression.
type ViewRecord struct {
	ID        uint32        `json:"view_id"`
	AdID      uint32        `json:"ad_id"`
	Viewer    ids.AccountID `json:"viewer"`
	Timestamp uint64        `json:"timestamp"`
	Completed bool          `json:"completed"`
}

// AdMetrics are the aggregate counters for one ad. The zero value is
// the state of an ad that has never been viewed.
type AdMetrics struct {
	TotalViews    uint64 `json:"total_views"`
	TotalClicks   uint64 `json:"total_clicks"`
	UniqueViewers uint64 `json:"unique_viewers"`
}

// Report is the engagement summary served to reporting consumers.
type Report struct {
	AdID             uint32          `json:"ad_id"`
	Metrics          AdMetrics       `json:"metrics"`
	ClickThroughRate decimal.Decimal `json:"click_through_rate"`
	RepeatViewRate   decimal.Decimal `json:"repeat_view_rate"`
}

// Ledger applies view/click state transitions.
type Ledger struct {
	mu      sync.Mutex
	store   *storage.Store
	journal *events.Journal
	metrics *metric.Metrics
	log     log.Logger
}

// New creates a tracking ledger. metrics may be nil.
func New(store *storage.Store, journal *events.Journal, metrics *metric.Metrics, logger log.Logger) *Ledger {
	return &Ledger{
		store:   store,
		journal: journal,
		metrics: metrics,
		log:     logger,
	}
}

// RecordView stores a view record and updates the ad's counters. The
// unique-viewer count moves only the first time this viewer views this
// ad. Returns the allocated view id.
func (l *Ledger) RecordView(viewer ids.AccountID, adID uint32, timestamp uint64) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	viewID, err := l.nextViewID()
	if err != nil {
		return 0, err
	}

	record := ViewRecord{
		ID:        viewID,
		AdID:      adID,
		Viewer:    viewer,
		Timestamp: timestamp,
	}

	adMetrics, err := l.adMetrics(adID)
	if err != nil {
		return 0, err
	}
	adMetrics.TotalViews = numeric.SatAdd64(adMetrics.TotalViews, 1)

	seenKey := storage.KeyAccountU32(storage.PrefixUserView, viewer, adID)
	seen, err := l.store.Has(seenKey)
	if err != nil {
		return 0, fmt.Errorf("reading seen flag: %w", err)
	}
	if !seen {
		adMetrics.UniqueViewers = numeric.SatAdd64(adMetrics.UniqueViewers, 1)
	}

	batch := l.store.NewBatch()
	if err := l.stageView(batch, record); err != nil {
		return 0, err
	}
	if err := l.stageAdMetrics(batch, adID, adMetrics); err != nil {
		return 0, err
	}
	if !seen {
		if err := batch.Put(seenKey, []byte{1}); err != nil {
			return 0, err
		}
	}
	if err := batch.Put(storage.CounterKey(storage.CounterViewID), storage.EncodeU32(viewID+1)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, fmt.Errorf("writing view: %w", err)
	}

	l.journal.Append(events.ViewRecorded{ViewID: viewID, AdID: adID, Viewer: viewer})
	if l.metrics != nil {
		l.metrics.ViewsRecorded.Inc()
	}

	l.log.Debug("view recorded",
		log.Uint32("view", viewID),
		log.Uint32("ad", adID),
		log.Stringer("viewer", viewer))

	return viewID, nil
}

// CompleteView flips a view record's completed flag. Only the original
// viewer may complete, and only once.
func (l *Ledger) CompleteView(caller ids.AccountID, viewID uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.view(viewID)
	if err != nil {
		return err
	}
	if record.Viewer != caller {
		return l.reject(ErrNotViewer)
	}
	if record.Completed {
		return l.reject(ErrViewAlreadyCompleted)
	}

	record.Completed = true

	batch := l.store.NewBatch()
	if err := l.stageView(batch, record); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing view: %w", err)
	}

	l.journal.Append(events.ViewCompleted{ViewID: viewID, AdID: record.AdID, Viewer: caller})
	if l.metrics != nil {
		l.metrics.ViewsCompleted.Inc()
	}

	l.log.Debug("view completed", log.Uint32("view", viewID))

	return nil
}

// RecordClick bumps the per-ad click counter and the aggregate click
// metric.
func (l *Ledger) RecordClick(viewer ids.AccountID, adID uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	clicks, err := l.clicks(adID)
	if err != nil {
		return err
	}

	adMetrics, err := l.adMetrics(adID)
	if err != nil {
		return err
	}
	adMetrics.TotalClicks = numeric.SatAdd64(adMetrics.TotalClicks, 1)

	batch := l.store.NewBatch()
	if err := batch.Put(storage.KeyU32(storage.PrefixClicks, adID), storage.EncodeU64(numeric.SatAdd64(clicks, 1))); err != nil {
		return err
	}
	if err := l.stageAdMetrics(batch, adID, adMetrics); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("writing click: %w", err)
	}

	l.journal.Append(events.ClickRecorded{AdID: adID, Viewer: viewer})
	if l.metrics != nil {
		l.metrics.ClicksRecorded.Inc()
	}

	l.log.Debug("click recorded",
		log.Uint32("ad", adID),
		log.Stringer("viewer", viewer))

	return nil
}

// Metrics returns the aggregate counters for an ad. Pure read; an ad
// that was never viewed reports zeroes.
func (l *Ledger) Metrics(adID uint32) (AdMetrics, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.adMetrics(adID)
}

// Clicks returns the per-ad click count.
func (l *Ledger) Clicks(adID uint32) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.clicks(adID)
}

// View returns a stored view record.
func (l *Ledger) View(viewID uint32) (ViewRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.view(viewID)
}

// BuildReport derives engagement rates from the raw counters.
func (l *Ledger) BuildReport(adID uint32) (Report, error) {
	metrics, err := l.Metrics(adID)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		AdID:             adID,
		Metrics:          metrics,
		ClickThroughRate: decimal.Zero,
		RepeatViewRate:   decimal.Zero,
	}

	if metrics.TotalViews > 0 {
		views := decimal.NewFromUint64(metrics.TotalViews)
		report.ClickThroughRate = decimal.NewFromUint64(metrics.TotalClicks).Div(views)
		repeat := metrics.TotalViews - metrics.UniqueViewers
		report.RepeatViewRate = decimal.NewFromUint64(repeat).Div(views)
	}

	return report, nil
}

func (l *Ledger) nextViewID() (uint32, error) {
	raw, err := l.store.Get(storage.CounterKey(storage.CounterViewID))
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

func (l *Ledger) view(viewID uint32) (ViewRecord, error) {
	raw, err := l.store.Get(storage.KeyU32(storage.PrefixView, viewID))
	if errors.Is(err, database.ErrNotFound) {
		return ViewRecord{}, l.reject(ErrViewNotFound)
	}
	if err != nil {
		return ViewRecord{}, fmt.Errorf("reading view: %w", err)
	}

	var record ViewRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return ViewRecord{}, fmt.Errorf("decoding view: %w", err)
	}
	return record, nil
}

func (l *Ledger) adMetrics(adID uint32) (AdMetrics, error) {
	raw, err := l.store.Get(storage.KeyU32(storage.PrefixAdMetrics, adID))
	if errors.Is(err, database.ErrNotFound) {
		return AdMetrics{}, nil
	}
	if err != nil {
		return AdMetrics{}, fmt.Errorf("reading metrics: %w", err)
	}

	var m AdMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return AdMetrics{}, fmt.Errorf("decoding metrics: %w", err)
	}
	return m, nil
}

func (l *Ledger) clicks(adID uint32) (uint64, error) {
	raw, err := l.store.Get(storage.KeyU32(storage.PrefixClicks, adID))
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading clicks: %w", err)
	}
	count, err := storage.DecodeU64(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding clicks: %w", err)
	}
	return count, nil
}

func (l *Ledger) stageView(batch database.Batch, record ViewRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyU32(storage.PrefixView, record.ID), raw)
}

func (l *Ledger) stageAdMetrics(batch database.Batch, adID uint32, m AdMetrics) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return batch.Put(storage.KeyU32(storage.PrefixAdMetrics, adID), raw)
}

func (l *Ledger) reject(err error) error {
	if l.metrics != nil {
		l.metrics.TransitionsRejected.WithLabelValues("tracking").Inc()
	}
	return err
}

// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all ledger metrics using luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Registry metrics
	AdvertisersRegistered   metrics.Counter
	AdvertisersDeregistered metrics.Counter
	DepositsReserved        metrics.Counter

	// Catalog metrics
	SpotsCreated   metrics.Counter
	AdsSubmitted   metrics.Counter
	AdsDeactivated metrics.Counter

	// Tracking metrics
	ViewsRecorded  metrics.Counter
	ViewsCompleted metrics.Counter
	ClicksRecorded metrics.Counter

	// Sponsorship metrics
	SponsorshipsRequested metrics.Counter
	AdViewsVerified       metrics.Counter
	FeesSponsored         metrics.Counter
	SponsorshipsCancelled metrics.Counter

	// Failed transitions by component
	TransitionsRejected metrics.CounterVec

	// Performance metrics
	TransitionDuration metrics.Histogram
}

// New creates a new metrics instance using luxfi/metric
func New() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New("adledger")

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.AdvertisersRegistered = metricsInstance.NewCounter("registry_advertisers_registered_total", "Total advertisers registered")
	m.AdvertisersDeregistered = metricsInstance.NewCounter("registry_advertisers_deregistered_total", "Total advertisers deregistered")
	m.DepositsReserved = metricsInstance.NewCounter("registry_deposits_reserved_total", "Total deposit amount reserved")

	m.SpotsCreated = metricsInstance.NewCounter("catalog_spots_created_total", "Total ad spots created")
	m.AdsSubmitted = metricsInstance.NewCounter("catalog_ads_submitted_total", "Total ads submitted")
	m.AdsDeactivated = metricsInstance.NewCounter("catalog_ads_deactivated_total", "Total ads deactivated")

	m.ViewsRecorded = metricsInstance.NewCounter("tracking_views_recorded_total", "Total ad views recorded")
	m.ViewsCompleted = metricsInstance.NewCounter("tracking_views_completed_total", "Total ad views completed")
	m.ClicksRecorded = metricsInstance.NewCounter("tracking_clicks_recorded_total", "Total ad clicks recorded")

	m.SponsorshipsRequested = metricsInstance.NewCounter("sponsorship_requested_total", "Total sponsorship requests created")
	m.AdViewsVerified = metricsInstance.NewCounter("sponsorship_views_verified_total", "Total sponsorship requests verified")
	m.FeesSponsored = metricsInstance.NewCounter("sponsorship_fees_sponsored_total", "Total fees reimbursed")
	m.SponsorshipsCancelled = metricsInstance.NewCounter("sponsorship_cancelled_total", "Total sponsorship requests cancelled")

	m.TransitionsRejected = metricsInstance.NewCounterVec(
		"ledger_transitions_rejected_total",
		"Total rejected state transitions by component",
		[]string{"component"},
	)

	m.TransitionDuration = metricsInstance.NewHistogram(
		"ledger_transition_duration_seconds",
		"Time to apply a state transition",
		prometheus.DefBuckets,
	)

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Upstream API request volume, errors, and latency per region/channel
// - Region health (computed error rates, degraded state)
// - Request budget waits and grants per lane
// - Circuit breaker state per region
// - Update run duration and backlog batch sizes

var (
	// Upstream API Metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total upstream API request attempts",
		},
		[]string{"region", "channel"},
	)

	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Total upstream API requests that failed after all retries",
		},
		[]string{"region", "channel"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"region", "resource"},
	)

	// Region Health Metrics
	RegionErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "region_error_rate",
			Help: "Last computed per-interval error rate per region and channel (0-1)",
		},
		[]string{"region", "channel"},
	)

	RegionDegraded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "region_degraded",
			Help: "Whether a region/channel is currently considered degraded (0/1)",
		},
		[]string{"region", "channel"},
	)

	RegionRedirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_redirects_total",
			Help: "Total region override activations",
		},
		[]string{"region", "target", "mode"}, // mode: "manual", "auto"
	)

	// Request Budget Metrics
	BudgetWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_budget_wait_seconds",
			Help:    "Time spent waiting for a request budget permit",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"region", "lane"}, // lane: "default", "priority"
	)

	BudgetGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_budget_grants_total",
			Help: "Total request budget permits granted",
		},
		[]string{"region", "lane"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Update Orchestrator Metrics
	UpdateRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "update_run_duration_seconds",
			Help:    "Duration of full update runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	UpdateRegionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_region_duration_seconds",
			Help:    "Duration of per-region update tasks in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"region"},
	)

	UpdateRunsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "update_runs_rejected_total",
			Help: "Trigger calls dropped because a run was already in flight",
		},
	)

	LadderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_fetches_total",
			Help: "Ladder fetches by mode",
		},
		[]string{"mode"}, // "conditional", "full", "unchanged"
	)

	BacklogBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backlog_batch_size",
			Help:    "Computed batch sizes for cursor-driven backlog passes",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"backlog"}, // "character", "clan_member", "stats_nullify"
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "update_events_published_total",
			Help: "Update completion events published by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)
)

// ObserveAPIRequest records a completed upstream API call.
func ObserveAPIRequest(region, resource string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(region, resource).Observe(duration.Seconds())
}

// SetRegionHealth updates the health gauges for one region/channel.
func SetRegionHealth(region, channel string, errorRate float64, degraded bool) {
	RegionErrorRate.WithLabelValues(region, channel).Set(errorRate)
	d := 0.0
	if degraded {
		d = 1.0
	}
	RegionDegraded.WithLabelValues(region, channel).Set(d)
}

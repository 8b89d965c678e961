// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
health.go - Region Health Monitoring

Tracks request and error volume per (region, channel) and converts them into
a per-interval error rate on a fixed cadence.

Recording and computing are deliberately separated: AddRequest/AddError are
lock-free atomic increments safe on every request path, while Update() runs
on its own cadence, recomputes the rate, and resets the window. A burst of
errors therefore cannot flip health state until the next Update() tick, and
the rate is a per-interval average rather than a cumulative one.

Two channels exist per region because the normal and the alternate (legacy)
API paths fail independently upstream.
*/
package region

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// Channel identifies which upstream request path a health record covers.
type Channel string

const (
	// ChannelNormal is the standard API request path.
	ChannelNormal Channel = "normal"
	// ChannelAlternate is the fallback/legacy API request path.
	ChannelAlternate Channel = "alternate"
)

// DefaultErrorRateThreshold marks a region degraded when the last computed
// error rate meets or exceeds it. Tunable via config.
const DefaultErrorRateThreshold = 0.3

// healthKey identifies one monitor record.
type healthKey struct {
	region  models.Region
	channel Channel
}

// healthRecord holds one window's counters plus the last computed rate.
// All fields are atomics; records are never removed once created.
type healthRecord struct {
	requests      atomic.Int64
	errors        atomic.Int64
	lastErrorRate atomic.Uint64 // math.Float64bits
	lastUpdated   atomic.Int64  // unix nanos
}

func (r *healthRecord) rate() float64 {
	return math.Float64frombits(r.lastErrorRate.Load())
}

// HealthSnapshot is a point-in-time view of one record for the admin surface.
type HealthSnapshot struct {
	Region        models.Region `json:"region"`
	Channel       Channel       `json:"channel"`
	Requests      int64         `json:"requests"`
	Errors        int64         `json:"errors"`
	LastErrorRate float64       `json:"lastErrorRate"`
	Degraded      bool          `json:"degraded"`
	LastUpdated   time.Time     `json:"lastUpdated"`
}

// HealthMonitor tracks upstream health per (region, channel).
//
// AddRequest and AddError are safe for concurrent use from any request path.
// Update is expected to be driven on a fixed cadence by a single caller.
type HealthMonitor struct {
	threshold float64

	mu      sync.RWMutex
	records map[healthKey]*healthRecord
}

// NewHealthMonitor creates a monitor with the given degradation threshold.
// A threshold <= 0 falls back to DefaultErrorRateThreshold.
func NewHealthMonitor(threshold float64) *HealthMonitor {
	if threshold <= 0 {
		threshold = DefaultErrorRateThreshold
	}
	return &HealthMonitor{
		threshold: threshold,
		records:   make(map[healthKey]*healthRecord),
	}
}

// record returns the record for (region, channel), creating it lazily.
func (m *HealthMonitor) record(region models.Region, channel Channel) *healthRecord {
	key := healthKey{region: region, channel: channel}

	m.mu.RLock()
	r, ok := m.records[key]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.records[key]; ok {
		return r
	}
	r = &healthRecord{}
	m.records[key] = r
	return r
}

// AddRequest records one completed request attempt. No I/O, no blocking.
func (m *HealthMonitor) AddRequest(region models.Region, channel Channel) {
	m.record(region, channel).requests.Add(1)
	metrics.APIRequests.WithLabelValues(region.String(), string(channel)).Inc()
}

// AddError records one request that failed after all retries. No I/O, no blocking.
func (m *HealthMonitor) AddError(region models.Region, channel Channel) {
	m.record(region, channel).errors.Add(1)
	metrics.APIErrors.WithLabelValues(region.String(), string(channel)).Inc()
}

// Update recomputes the error rate for every record and resets the window
// counters. Call on a fixed cadence, independent of request volume.
func (m *HealthMonitor) Update() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	for key, r := range m.records {
		requests := r.requests.Swap(0)
		errors := r.errors.Swap(0)

		rate := float64(errors) / math.Max(float64(requests), 1)
		r.lastErrorRate.Store(math.Float64bits(rate))
		r.lastUpdated.Store(now.UnixNano())

		degraded := rate >= m.threshold
		metrics.SetRegionHealth(key.region.String(), string(key.channel), rate, degraded)
		if degraded {
			logging.Warn().
				Str("region", key.region.String()).
				Str("channel", string(key.channel)).
				Float64("error_rate", rate).
				Msg("region degraded")
		}
	}
}

// IsDegraded reports whether the last computed error rate for
// (region, channel) meets or exceeds the threshold.
func (m *HealthMonitor) IsDegraded(region models.Region, channel Channel) bool {
	m.mu.RLock()
	r, ok := m.records[healthKey{region: region, channel: channel}]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return r.rate() >= m.threshold
}

// ErrorRate returns the last computed error rate for (region, channel),
// or 0 when the record does not exist yet.
func (m *HealthMonitor) ErrorRate(region models.Region, channel Channel) float64 {
	m.mu.RLock()
	r, ok := m.records[healthKey{region: region, channel: channel}]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.rate()
}

// Snapshot returns the current state of every known record.
func (m *HealthMonitor) Snapshot() []HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HealthSnapshot, 0, len(m.records))
	for key, r := range m.records {
		rate := r.rate()
		out = append(out, HealthSnapshot{
			Region:        key.region,
			Channel:       key.channel,
			Requests:      r.requests.Load(),
			Errors:        r.errors.Load(),
			LastErrorRate: rate,
			Degraded:      rate >= m.threshold,
			LastUpdated:   time.Unix(0, r.lastUpdated.Load()),
		})
	}
	return out
}

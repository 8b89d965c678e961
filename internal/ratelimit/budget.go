// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
budget.go - Upstream Request Budget

Enforces the upstream provider's request quotas: a requests/second cap and a
requests/hour cap, either per region (separate mode) or pooled across all
regions (shared mode), matching the provider's actual contract.

Lanes: a configurable share of every window is reserved for the priority
lane, so a long-running bulk sync on the default lane can never exhaust the
quota needed for orchestration-critical calls. Priority traffic still counts
toward the same hard cap; it is simply never queued behind default traffic.

Callers block (context-aware) until budget is available; running out of
budget is a wait, never an error. Window accounting happens under one mutex
with no I/O inside the critical section. Default-lane grants are additionally
paced through a token bucket (golang.org/x/time/rate) so a freed window does
not release a thundering herd at the upstream.

Caps are adjustable at runtime; clearing an override reverts to the
configured defaults.
*/
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// Lane selects which portion of the budget a reservation draws from.
type Lane string

const (
	// LaneDefault is bulk/background traffic.
	LaneDefault Lane = "default"
	// LanePriority is latency-sensitive or orchestration-critical traffic.
	LanePriority Lane = "priority"
)

// Default caps, matching the upstream provider's documented per-client quota.
const (
	DefaultRequestsPerSecond = 10
	DefaultRequestsPerHour   = 36000
	DefaultPriorityShare     = 0.2
)

// Caps is one region's (or the shared pool's) quota pair.
type Caps struct {
	PerSecond int `json:"perSecond"`
	PerHour   int `json:"perHour"`
}

// Config configures a Budget.
type Config struct {
	// Shared pools all regions into one quota when true; otherwise each
	// region gets independent windows.
	Shared bool

	// PerSecond / PerHour are the default caps (per region, or for the
	// shared pool).
	PerSecond int
	PerHour   int

	// PriorityShare is the fraction of each window reserved for the
	// priority lane (0..1). Default 0.2.
	PriorityShare float64
}

// withDefaults fills zero values with documented defaults.
func (c Config) withDefaults() Config {
	if c.PerSecond <= 0 {
		c.PerSecond = DefaultRequestsPerSecond
	}
	if c.PerHour <= 0 {
		c.PerHour = DefaultRequestsPerHour
	}
	if c.PriorityShare <= 0 || c.PriorityShare >= 1 {
		c.PriorityShare = DefaultPriorityShare
	}
	return c
}

// window is a fixed quota window.
type window struct {
	start time.Time
	count int
}

func (w *window) roll(now time.Time, size time.Duration) {
	if now.Sub(w.start) >= size {
		w.start = now.Truncate(size)
		w.count = 0
	}
}

// poolState holds the windows and effective caps for one quota pool.
type poolState struct {
	caps     Caps
	override bool
	second   window
	hour     window
	pacer    *rate.Limiter // default-lane smoothing
}

// sharedKey is the pseudo-region under which shared-mode state lives.
const sharedKey = models.Region("*")

// Budget grants upstream request permits under the configured quotas.
type Budget struct {
	cfg Config
	now func() time.Time

	mu    sync.Mutex
	pools map[models.Region]*poolState
}

// NewBudget creates a request budget.
func NewBudget(cfg Config) *Budget {
	return &Budget{
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		pools: make(map[models.Region]*poolState),
	}
}

// poolKey maps a region to its quota pool.
func (b *Budget) poolKey(region models.Region) models.Region {
	if b.cfg.Shared {
		return sharedKey
	}
	return region
}

// pool returns the pool for a region, creating it lazily. Caller holds b.mu.
func (b *Budget) pool(region models.Region) *poolState {
	key := b.poolKey(region)
	p, ok := b.pools[key]
	if !ok {
		caps := Caps{PerSecond: b.cfg.PerSecond, PerHour: b.cfg.PerHour}
		p = &poolState{
			caps:  caps,
			pacer: rate.NewLimiter(rate.Limit(caps.PerSecond), caps.PerSecond),
		}
		b.pools[key] = p
	}
	return p
}

// laneCap returns the effective cap for a lane given the hard cap: the
// default lane leaves the priority reserve untouched, the priority lane may
// use the full window.
func (b *Budget) laneCap(hardCap int, lane Lane) int {
	if lane == LanePriority {
		return hardCap
	}
	reserve := int(math.Ceil(float64(hardCap) * b.cfg.PriorityShare))
	if reserve >= hardCap {
		reserve = hardCap - 1
	}
	if reserve < 0 {
		reserve = 0
	}
	return hardCap - reserve
}

// Reserve blocks until a permit is available for the region on the given
// lane, or the context is done. Permits are consumed per attempt and are
// never returned; the window rollover replenishes quota.
func (b *Budget) Reserve(ctx context.Context, region models.Region, lane Lane) error {
	start := time.Now()
	defer func() {
		metrics.BudgetWaitDuration.WithLabelValues(region.String(), string(lane)).
			Observe(time.Since(start).Seconds())
	}()

	// Pace default-lane entries so a fresh window does not release a burst.
	// Priority traffic skips the pacer: it must never queue behind the bulk
	// stream this pacer is smoothing.
	if lane == LaneDefault {
		b.mu.Lock()
		pacer := b.pool(region).pacer
		b.mu.Unlock()
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
	}

	for {
		b.mu.Lock()
		p := b.pool(region)
		now := b.now()
		p.second.roll(now, time.Second)
		p.hour.roll(now, time.Hour)

		secCap := b.laneCap(p.caps.PerSecond, lane)
		hourCap := b.laneCap(p.caps.PerHour, lane)

		if p.second.count < secCap && p.hour.count < hourCap {
			p.second.count++
			p.hour.count++
			b.mu.Unlock()
			metrics.BudgetGrants.WithLabelValues(region.String(), string(lane)).Inc()
			return nil
		}

		// Wait until the earliest window that is blocking us rolls over.
		wait := p.second.start.Add(time.Second).Sub(now)
		if p.hour.count >= hourCap {
			if hw := p.hour.start.Add(time.Hour).Sub(now); hw > wait {
				wait = hw
			}
		}
		b.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// SetCaps overrides the caps for a region's pool at runtime.
func (b *Budget) SetCaps(region models.Region, caps Caps) {
	if caps.PerSecond <= 0 || caps.PerHour <= 0 {
		return
	}
	b.mu.Lock()
	p := b.pool(region)
	p.caps = caps
	p.override = true
	p.pacer.SetLimit(rate.Limit(caps.PerSecond))
	p.pacer.SetBurst(caps.PerSecond)
	b.mu.Unlock()

	logging.Info().
		Str("region", region.String()).
		Int("per_second", caps.PerSecond).
		Int("per_hour", caps.PerHour).
		Msg("request caps overridden")
}

// ClearCaps reverts a region's pool to the configured defaults.
func (b *Budget) ClearCaps(region models.Region) {
	b.mu.Lock()
	p := b.pool(region)
	p.caps = Caps{PerSecond: b.cfg.PerSecond, PerHour: b.cfg.PerHour}
	p.override = false
	p.pacer.SetLimit(rate.Limit(p.caps.PerSecond))
	p.pacer.SetBurst(p.caps.PerSecond)
	b.mu.Unlock()

	logging.Info().Str("region", region.String()).Msg("request caps reverted to defaults")
}

// CapsFor returns the effective caps for a region's pool and whether they
// are an admin override.
func (b *Budget) CapsFor(region models.Region) (Caps, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pool(region)
	return p.caps, p.override
}

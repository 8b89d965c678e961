// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
router.go - Region Redirection

Decides which physical region backend services a logical region. Per logical
region the state machine is:

	Direct -> ManualOverride(target)           (operator action, never expires)
	Direct -> AutoOverride(target, expiry)     (EvaluateAutoRedirects only)
	AutoOverride -> Direct                     (first Resolve after expiry)

Manual overrides always win and are untouched by auto evaluation. Auto
overrides do NOT revert when health recovers; they persist until expiry so a
flapping region does not bounce traffic back and forth.

Auto evaluation runs on an explicit periodic call, never inside Resolve, so
Resolve stays a cheap map lookup on every request path.
*/
package region

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// OverrideMode distinguishes operator overrides from automatic ones.
type OverrideMode string

const (
	// ModeManual is an operator-set override; it never expires.
	ModeManual OverrideMode = "manual"
	// ModeAutoTemporary is a health-driven override with a fixed expiry.
	ModeAutoTemporary OverrideMode = "auto"
)

// DefaultAutoOverrideDuration bounds how long an automatic redirect lives.
const DefaultAutoOverrideDuration = time.Hour

// Override redirects one logical region to a target physical region.
// At most one override exists per region.
type Override struct {
	Region models.Region `json:"region"`
	Target models.Region `json:"target"`
	Mode   OverrideMode  `json:"mode"`
	Expiry time.Time     `json:"expiry,omitempty"` // zero for manual
}

// DegradedChecker is the health signal the router consults during auto
// evaluation. Satisfied by *HealthMonitor.
type DegradedChecker interface {
	IsDegraded(region models.Region, channel Channel) bool
}

// Router resolves logical regions to physical ones.
type Router struct {
	health       DegradedChecker
	active       []models.Region
	autoDuration time.Duration
	autoForce    atomic.Bool
	now          func() time.Time

	mu        sync.RWMutex
	overrides map[models.Region]Override
}

// NewRouter creates a router over the given active regions.
// autoDuration <= 0 falls back to DefaultAutoOverrideDuration.
func NewRouter(health DegradedChecker, active []models.Region, autoDuration time.Duration) *Router {
	if autoDuration <= 0 {
		autoDuration = DefaultAutoOverrideDuration
	}
	return &Router{
		health:       health,
		active:       active,
		autoDuration: autoDuration,
		now:          time.Now,
		overrides:    make(map[models.Region]Override),
	}
}

// SetAutoForceRegion toggles automatic redirect evaluation globally.
func (r *Router) SetAutoForceRegion(enabled bool) {
	r.autoForce.Store(enabled)
}

// AutoForceRegion reports whether automatic redirects are enabled.
func (r *Router) AutoForceRegion() bool {
	return r.autoForce.Load()
}

// Resolve returns the physical region servicing the given logical region.
// Expired auto overrides are dropped here, on first use after expiry.
func (r *Router) Resolve(region models.Region) models.Region {
	r.mu.RLock()
	o, ok := r.overrides[region]
	r.mu.RUnlock()
	if !ok {
		return region
	}

	if o.Mode == ModeAutoTemporary && r.now().After(o.Expiry) {
		r.mu.Lock()
		// Re-check under the write lock; the override may have been replaced.
		if cur, ok := r.overrides[region]; ok && cur.Mode == ModeAutoTemporary && r.now().After(cur.Expiry) {
			delete(r.overrides, region)
			logging.Info().Str("region", region.String()).Msg("auto region override expired")
		}
		o, ok = r.overrides[region]
		r.mu.Unlock()
		if !ok {
			return region
		}
	}

	return o.Target
}

// ForceRegion installs a manual override, replacing any existing one.
func (r *Router) ForceRegion(region, target models.Region) {
	r.mu.Lock()
	r.overrides[region] = Override{Region: region, Target: target, Mode: ModeManual}
	r.mu.Unlock()

	metrics.RegionRedirects.WithLabelValues(region.String(), target.String(), string(ModeManual)).Inc()
	logging.Info().Str("region", region.String()).Str("target", target.String()).Msg("manual region override set")
}

// ClearOverride removes any override for the region, manual or automatic.
func (r *Router) ClearOverride(region models.Region) {
	r.mu.Lock()
	_, existed := r.overrides[region]
	delete(r.overrides, region)
	r.mu.Unlock()

	if existed {
		logging.Info().Str("region", region.String()).Msg("region override cleared")
	}
}

// Overrides returns a copy of the current override set.
func (r *Router) Overrides() []Override {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Override, 0, len(r.overrides))
	for _, o := range r.overrides {
		out = append(out, o)
	}
	return out
}

// EvaluateAutoRedirects installs automatic overrides for degraded regions.
// Called on a controlled cadence, never per-request. Regions that already
// carry an override (manual or still-live auto) are left alone.
func (r *Router) EvaluateAutoRedirects() {
	if !r.autoForce.Load() {
		return
	}

	now := r.now()
	for _, region := range r.active {
		if !r.health.IsDegraded(region, ChannelNormal) {
			continue
		}

		r.mu.Lock()
		if cur, ok := r.overrides[region]; ok {
			// Manual overrides always win; live auto overrides persist.
			if cur.Mode == ModeManual || now.Before(cur.Expiry) {
				r.mu.Unlock()
				continue
			}
			delete(r.overrides, region)
		}
		target, ok := r.pickTarget(region)
		if !ok {
			r.mu.Unlock()
			logging.Warn().Str("region", region.String()).Msg("region degraded but no healthy redirect target")
			continue
		}
		r.overrides[region] = Override{
			Region: region,
			Target: target,
			Mode:   ModeAutoTemporary,
			Expiry: now.Add(r.autoDuration),
		}
		r.mu.Unlock()

		metrics.RegionRedirects.WithLabelValues(region.String(), target.String(), string(ModeAutoTemporary)).Inc()
		logging.Warn().
			Str("region", region.String()).
			Str("target", target.String()).
			Time("expiry", now.Add(r.autoDuration)).
			Msg("auto region override activated")
	}
}

// pickTarget chooses the redirect target for a degraded region: the
// documented fallback unless it is itself degraded, else the first other
// active healthy region in stable enumeration order.
func (r *Router) pickTarget(region models.Region) (models.Region, bool) {
	fb := region.Fallback()
	if fb != region && !r.health.IsDegraded(fb, ChannelNormal) {
		return fb, true
	}
	for _, candidate := range r.active {
		if candidate == region || candidate == fb {
			continue
		}
		if !r.health.IsDegraded(candidate, ChannelNormal) {
			return candidate, true
		}
	}
	return region, false
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
admin.go - Runtime Client Knobs

Administrative controls over the client's per-region behavior: call
timeouts, TLS verification tolerance, rate caps, and region overrides.
Clearing any knob reverts the region to its configured default.

Settings are read on every request without locking: the live values sit
in an immutable snapshot swapped atomically by writers. Each snapshot
carries pre-built HTTP clients so the hot path never constructs one.
*/

package client

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

// regionSettings are one region's effective knobs.
type regionSettings struct {
	Timeout   time.Duration
	SSLIgnore bool
}

// settingsSnapshot is an immutable view of all regions' settings.
type settingsSnapshot struct {
	regions map[models.Region]regionSettings
	clients map[models.Region]*http.Client
}

// settingsStore owns the snapshot. Readers load it atomically; writers
// serialize through mu and swap in a rebuilt copy.
type settingsStore struct {
	defaultTimeout time.Duration

	mu       sync.Mutex
	current  atomic.Pointer[settingsSnapshot]
	timeouts map[models.Region]time.Duration // explicit overrides only
	insecure map[models.Region]bool
}

func newSettingsStore(defaultTimeout time.Duration) *settingsStore {
	if defaultTimeout <= 0 {
		defaultTimeout = 40 * time.Second
	}
	s := &settingsStore{
		defaultTimeout: defaultTimeout,
		timeouts:       make(map[models.Region]time.Duration),
		insecure:       make(map[models.Region]bool),
	}
	s.rebuild()
	return s
}

// rebuild constructs and publishes a fresh snapshot. Callers must hold mu
// (the constructor is exempt, nothing else can see the store yet).
func (s *settingsStore) rebuild() {
	snap := &settingsSnapshot{
		regions: make(map[models.Region]regionSettings, len(models.AllRegions())),
		clients: make(map[models.Region]*http.Client, len(models.AllRegions())),
	}
	for _, r := range models.AllRegions() {
		rs := regionSettings{Timeout: s.defaultTimeout}
		if t, ok := s.timeouts[r]; ok {
			rs.Timeout = t
		}
		rs.SSLIgnore = s.insecure[r]
		snap.regions[r] = rs
		snap.clients[r] = buildClient(rs.Timeout, rs.SSLIgnore)
	}
	s.current.Store(snap)
}

func (s *settingsStore) httpClient(r models.Region) *http.Client {
	return s.current.Load().clients[r]
}

func (s *settingsStore) settings(r models.Region) regionSettings {
	return s.current.Load().regions[r]
}

// SetTimeout overrides one region's call timeout. Non-positive values are
// ignored.
func (c *Client) SetTimeout(r models.Region, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	s := c.settings
	s.mu.Lock()
	s.timeouts[r] = timeout
	s.rebuild()
	s.mu.Unlock()
	logging.Info().Str("region", r.String()).Dur("timeout", timeout).Msg("region timeout override set")
}

// ClearTimeout reverts one region's call timeout to the configured default.
func (c *Client) ClearTimeout(r models.Region) {
	s := c.settings
	s.mu.Lock()
	delete(s.timeouts, r)
	s.rebuild()
	s.mu.Unlock()
	logging.Info().Str("region", r.String()).Msg("region timeout override cleared")
}

// Timeout returns one region's effective call timeout.
func (c *Client) Timeout(r models.Region) time.Duration {
	return c.settings.settings(r).Timeout
}

// SetSSLIgnore toggles TLS certificate verification for one region. Meant
// for self-signed staging endpoints only.
func (c *Client) SetSSLIgnore(r models.Region, ignore bool) {
	s := c.settings
	s.mu.Lock()
	if ignore {
		s.insecure[r] = true
	} else {
		delete(s.insecure, r)
	}
	s.rebuild()
	s.mu.Unlock()
	logging.Warn().Str("region", r.String()).Bool("ignore", ignore).Msg("region TLS verification tolerance changed")
}

// SSLIgnored reports whether TLS verification is disabled for a region.
func (c *Client) SSLIgnored(r models.Region) bool {
	return c.settings.settings(r).SSLIgnore
}

// EffectiveRegion returns the physical region currently servicing the
// logical one. Identity when no override is active.
func (c *Client) EffectiveRegion(r models.Region) models.Region {
	return c.router.Resolve(r)
}

// ForceRegion installs a manual redirect from region to target.
func (c *Client) ForceRegion(r, target models.Region) {
	c.router.ForceRegion(r, target)
}

// ClearForcedRegion removes any redirect for the region.
func (c *Client) ClearForcedRegion(r models.Region) {
	c.router.ClearOverride(r)
}

// SetAutoForceRegion toggles automatic redirection of degraded regions.
func (c *Client) SetAutoForceRegion(enabled bool) {
	c.router.SetAutoForceRegion(enabled)
}

// SetRateCaps overrides one region's request caps.
func (c *Client) SetRateCaps(r models.Region, caps ratelimit.Caps) {
	c.budget.SetCaps(r, caps)
}

// ClearRateCaps reverts one region's request caps to the configured
// defaults.
func (c *Client) ClearRateCaps(r models.Region) {
	c.budget.ClearCaps(r)
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/sc2-pulse/laddersync/internal/client"
	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
	"github.com/sc2-pulse/laddersync/internal/region"
	"github.com/sc2-pulse/laddersync/internal/sync"
)

// UpdateTrigger is the orchestrator surface the API needs. Satisfied by
// *sync.Manager.
type UpdateTrigger interface {
	TriggerUpdate(ctx context.Context) (run *sync.Run, started bool)
	Running() bool
}

// Handlers implements the admin endpoints.
type Handlers struct {
	client  *client.Client
	health  *region.HealthMonitor
	router  *region.Router
	updates UpdateTrigger
}

// NewHandlers wires the handler set.
func NewHandlers(c *client.Client, health *region.HealthMonitor, router *region.Router, updates UpdateTrigger) *Handlers {
	return &Handlers{client: c, health: health, router: router, updates: updates}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode API response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// pathRegion extracts and validates the {region} URL parameter.
func pathRegion(w http.ResponseWriter, r *http.Request) (models.Region, bool) {
	reg, ok := models.ParseRegion(chi.URLParam(r, "region"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown region")
		return "", false
	}
	return reg, true
}

// RegionHealth returns the monitor's current per-region snapshots.
func (h *Handlers) RegionHealth(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Region    string  `json:"region"`
		Channel   string  `json:"channel"`
		ErrorRate float64 `json:"errorRate"`
		Degraded  bool    `json:"degraded"`
	}
	snaps := h.health.Snapshot()
	out := make([]entry, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, entry{
			Region:    s.Region.String(),
			Channel:   string(s.Channel),
			ErrorRate: s.LastErrorRate,
			Degraded:  s.Degraded,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// Overrides returns the active region overrides.
func (h *Handlers) Overrides(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Region string `json:"region"`
		Target string `json:"target"`
		Mode   string `json:"mode"`
		Expiry string `json:"expiry,omitempty"`
	}
	overrides := h.router.Overrides()
	out := make([]entry, 0, len(overrides))
	for _, o := range overrides {
		e := entry{Region: o.Region.String(), Target: o.Target.String(), Mode: string(o.Mode)}
		if !o.Expiry.IsZero() {
			e.Expiry = o.Expiry.UTC().Format(time.RFC3339)
		}
		out = append(out, e)
	}
	respondJSON(w, http.StatusOK, out)
}

// SetAutoForce toggles automatic redirection of degraded regions.
func (h *Handlers) SetAutoForce(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.client.SetAutoForceRegion(body.Enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

// ForceRegion installs a manual redirect for the region.
func (h *Handlers) ForceRegion(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	var body struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := models.ParseRegion(body.Target)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown target region")
		return
	}
	h.client.ForceRegion(reg, target)
	respondJSON(w, http.StatusOK, map[string]string{"region": reg.String(), "target": target.String()})
}

// ClearForcedRegion removes the region's redirect.
func (h *Handlers) ClearForcedRegion(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	h.client.ClearForcedRegion(reg)
	respondJSON(w, http.StatusOK, map[string]string{"region": reg.String()})
}

// SetTimeout overrides the region's call timeout.
func (h *Handlers) SetTimeout(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	var body struct {
		Timeout string `json:"timeout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := time.ParseDuration(body.Timeout)
	if err != nil || d <= 0 {
		respondError(w, http.StatusBadRequest, "timeout must be a positive duration")
		return
	}
	h.client.SetTimeout(reg, d)
	respondJSON(w, http.StatusOK, map[string]string{"region": reg.String(), "timeout": d.String()})
}

// ClearTimeout reverts the region's call timeout to the default.
func (h *Handlers) ClearTimeout(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	h.client.ClearTimeout(reg)
	respondJSON(w, http.StatusOK, map[string]string{"region": reg.String(), "timeout": h.client.Timeout(reg).String()})
}

// SetSSLIgnore disables TLS verification for the region.
func (h *Handlers) SetSSLIgnore(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	h.client.SetSSLIgnore(reg, true)
	respondJSON(w, http.StatusOK, map[string]any{"region": reg.String(), "ignore": true})
}

// ClearSSLIgnore restores TLS verification for the region.
func (h *Handlers) ClearSSLIgnore(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	h.client.SetSSLIgnore(reg, false)
	respondJSON(w, http.StatusOK, map[string]any{"region": reg.String(), "ignore": false})
}

// SetCaps overrides the region's request caps.
func (h *Handlers) SetCaps(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	var caps ratelimit.Caps
	if err := json.NewDecoder(r.Body).Decode(&caps); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if caps.PerSecond <= 0 || caps.PerHour <= 0 {
		respondError(w, http.StatusBadRequest, "caps must be positive")
		return
	}
	h.client.SetRateCaps(reg, caps)
	respondJSON(w, http.StatusOK, map[string]any{"region": reg.String(), "caps": caps})
}

// ClearCaps reverts the region's request caps to the defaults.
func (h *Handlers) ClearCaps(w http.ResponseWriter, r *http.Request) {
	reg, ok := pathRegion(w, r)
	if !ok {
		return
	}
	h.client.ClearRateCaps(reg)
	respondJSON(w, http.StatusOK, map[string]string{"region": reg.String()})
}

// TriggerUpdate starts an update run. An already-running update is not
// an error; the response reports whether this call started one. The run
// outlives the request, so its context must not be tied to it.
func (h *Handlers) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	_, started := h.updates.TriggerUpdate(context.WithoutCancel(r.Context()))
	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]bool{"started": started})
}

// UpdateStatus reports whether an update run is in flight.
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"running": h.updates.Running()})
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
router.go - Administrative HTTP Surface

Runtime knobs and introspection over HTTP. This surface is operational,
not business logic: force or clear region redirects, tune per-region
timeouts, TLS tolerance, and rate caps, toggle auto-force-region, and
trigger or inspect update runs. All knobs revert to configured defaults
when cleared. Prometheus metrics are served on /metrics.
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the admin HTTP router around a handler set.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.RegionHealth)
		r.Get("/overrides", h.Overrides)

		r.Post("/auto-force", h.SetAutoForce)

		r.Route("/regions/{region}", func(r chi.Router) {
			r.Post("/force", h.ForceRegion)
			r.Delete("/force", h.ClearForcedRegion)
			r.Post("/timeout", h.SetTimeout)
			r.Delete("/timeout", h.ClearTimeout)
			r.Post("/ssl-ignore", h.SetSSLIgnore)
			r.Delete("/ssl-ignore", h.ClearSSLIgnore)
			r.Post("/caps", h.SetCaps)
			r.Delete("/caps", h.ClearCaps)
		})

		r.Post("/update", h.TriggerUpdate)
		r.Get("/update/status", h.UpdateStatus)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

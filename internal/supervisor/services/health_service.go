// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package services

import (
	"context"
	"time"
)

// HealthRefresher rolls per-region request counters into error rates.
// Satisfied by *region.HealthMonitor.
type HealthRefresher interface {
	Update()
}

// RedirectEvaluator re-evaluates automatic region redirects against the
// latest error rates. Satisfied by *region.Router.
type RedirectEvaluator interface {
	EvaluateAutoRedirects()
}

// HealthService periodically rolls region health windows and, on a
// separate cadence, re-evaluates automatic redirects. Redirect
// evaluation runs after the rate roll it observes, so the two tickers
// are deliberately independent.
type HealthService struct {
	health           HealthRefresher
	router           RedirectEvaluator
	healthInterval   time.Duration
	redirectInterval time.Duration
	name             string
}

// NewHealthService creates the region health maintenance loop.
func NewHealthService(health HealthRefresher, router RedirectEvaluator, healthInterval, redirectInterval time.Duration) *HealthService {
	return &HealthService{
		health:           health,
		router:           router,
		healthInterval:   healthInterval,
		redirectInterval: redirectInterval,
		name:             "region-health",
	}
}

// Serve implements suture.Service.
func (s *HealthService) Serve(ctx context.Context) error {
	healthTicker := time.NewTicker(s.healthInterval)
	defer healthTicker.Stop()
	redirectTicker := time.NewTicker(s.redirectInterval)
	defer redirectTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-healthTicker.C:
			s.health.Update()
		case <-redirectTicker.C:
			s.router.EvaluateAutoRedirects()
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *HealthService) String() string {
	return s.name
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package services

import (
	"context"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/sync"
)

// UpdateRunner is the orchestrator surface the update loop needs.
// Satisfied by *sync.Manager.
type UpdateRunner interface {
	TriggerUpdate(ctx context.Context) (*sync.Run, bool)
}

// UpdateLoopService triggers an update run on a fixed interval. The
// orchestrator enforces single-flight, so a tick that fires while a run
// is still in progress simply joins it.
type UpdateLoopService struct {
	runner   UpdateRunner
	interval time.Duration
	name     string
}

// NewUpdateLoopService creates the periodic update driver. An initial
// run is triggered immediately on start.
func NewUpdateLoopService(runner UpdateRunner, interval time.Duration) *UpdateLoopService {
	return &UpdateLoopService{
		runner:   runner,
		interval: interval,
		name:     "update-loop",
	}
}

// Serve implements suture.Service.
func (s *UpdateLoopService) Serve(ctx context.Context) error {
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *UpdateLoopService) trigger(ctx context.Context) {
	if _, started := s.runner.TriggerUpdate(ctx); !started {
		logging.Debug().Msg("update already in progress, skipping tick")
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *UpdateLoopService) String() string {
	return s.name
}

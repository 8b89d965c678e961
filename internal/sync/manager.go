// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
manager.go - Update Orchestrator

Coordinates incremental ladder updates: Idle -> Running -> Idle. One run
processes every active region concurrently (regions never block each
other), then performs the cross-region backlog sweeps and the retention
pass. The orchestrator is single-flight: a trigger while a run is in
progress starts nothing and hands back the in-flight run's handle, which
late callers can await.

The guard is an atomically swapped flag checked at trigger time, not a
lock held for the run's duration; all blocking (permits, HTTP, retries)
happens outside it.
*/

package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/events"
	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
	"github.com/sc2-pulse/laddersync/internal/storage"
)

// LadderAPI is the slice of the resilient client the orchestrator uses.
// Satisfied by *client.Client.
type LadderAPI interface {
	GetCurrentSeason(ctx context.Context, r models.Region, lane ratelimit.Lane) (*blizzard.Season, error)
	GetLeague(ctx context.Context, r models.Region, lane ratelimit.Lane, seasonID int, queue models.QueueType, teamType models.TeamType, tier models.LeagueTier) (*blizzard.League, error)
	GetLadderIfChanged(ctx context.Context, r models.Region, lane ratelimit.Lane, ladderID int64, since time.Time) (*blizzard.Ladder, bool, error)
	GetLegacyProfile(ctx context.Context, r models.Region, lane ratelimit.Lane, realm int, profileID int64) (*blizzard.LegacyProfile, error)
	AcknowledgeDivision(ladderID int64)
	HasDivisionError(ladderID int64) bool
	EffectiveRegion(r models.Region) models.Region
}

// Run is the completion handle of one update run.
type Run struct {
	done chan struct{}
	err  error
}

// Wait blocks until the run completes or the context is cancelled, and
// returns the run's first error.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the completion channel for select-based callers.
func (r *Run) Done() <-chan struct{} { return r.done }

// Manager orchestrates incremental updates across regions.
type Manager struct {
	cfg        config.UpdateConfig
	regions    []models.Region
	api        LadderAPI
	vars       *storage.VariableStore
	seasons    SeasonRepository
	ladders    LadderRepository
	characters CharacterRepository
	clans      ClanRepository
	accounts   AccountRepository
	publisher  *events.Publisher

	running atomic.Bool
	mu      sync.Mutex
	current *Run

	now func() time.Time
}

// NewManager wires an orchestrator. The publisher may be nil, in which
// case completion events are skipped.
func NewManager(
	cfg config.UpdateConfig,
	regions []models.Region,
	api LadderAPI,
	vars *storage.VariableStore,
	seasons SeasonRepository,
	ladders LadderRepository,
	characters CharacterRepository,
	clans ClanRepository,
	accounts AccountRepository,
	publisher *events.Publisher,
) *Manager {
	return &Manager{
		cfg:        cfg,
		regions:    regions,
		api:        api,
		vars:       vars,
		seasons:    seasons,
		ladders:    ladders,
		characters: characters,
		clans:      clans,
		accounts:   accounts,
		publisher:  publisher,
		now:        time.Now,
	}
}

// TriggerUpdate starts an update run unless one is already in flight.
// The returned bool reports whether this call started the run; either
// way the handle belongs to the run currently in flight.
func (m *Manager) TriggerUpdate(ctx context.Context) (*Run, bool) {
	m.mu.Lock()
	if m.running.Load() {
		run := m.current
		m.mu.Unlock()
		metrics.UpdateRunsRejected.Inc()
		logging.Debug().Msg("update trigger dropped, run already in flight")
		return run, false
	}
	run := &Run{done: make(chan struct{})}
	m.current = run
	m.running.Store(true)
	m.mu.Unlock()

	go m.execute(ctx, run)
	return run, true
}

// Running reports whether an update run is in flight.
func (m *Manager) Running() bool { return m.running.Load() }

// execute performs one full run and releases the single-flight guard.
func (m *Manager) execute(ctx context.Context, run *Run) {
	start := m.now()
	logging.Info().Msg("update run started")

	defer func() {
		metrics.UpdateRunDuration.Observe(m.now().Sub(start).Seconds())
		m.running.Store(false)
		close(run.done)
		logging.Info().Dur("elapsed", m.now().Sub(start)).Err(run.err).Msg("update run finished")
	}()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for _, r := range m.regions {
		wg.Add(1)
		go func(r models.Region) {
			defer wg.Done()
			regionStart := m.now()
			err := m.updateRegion(ctx, r)
			metrics.UpdateRegionDuration.WithLabelValues(r.String()).Observe(m.now().Sub(regionStart).Seconds())
			if err != nil {
				// One region's failure never aborts its siblings.
				logging.Error().Str("region", r.String()).Err(err).Msg("region update failed")
				record(err)
			}
		}(r)
	}
	wg.Wait()

	// Cross-region sweeps run once per run, after the region tasks.
	record(m.updateCharacters(ctx))
	record(m.updateClanMembers(ctx))
	record(m.anonymize(ctx))

	run.err = firstErr
}

// updateRegion performs one region's pass: season discovery, season
// selection, and the ladder refresh with its completion event.
func (m *Manager) updateRegion(ctx context.Context, r models.Region) error {
	m.discoverCurrentSeason(ctx, r)

	season, isCurrent, err := m.getSeasonToUpdate(ctx, r)
	if err != nil {
		return err
	}
	if season == nil {
		logging.Debug().Str("region", r.String()).Msg("no season due for update")
		return nil
	}

	taskCtx, err := m.updateSeason(ctx, r, *season, isCurrent)
	if err != nil {
		return err
	}

	if err := m.recordSeasonRefresh(r, *season, isCurrent); err != nil {
		return err
	}

	if m.publisher != nil {
		fresh := isCurrent && m.api.EffectiveRegion(r) == r
		event := events.UpdateEvent{
			Region:      r,
			Season:      *season,
			TaskContext: taskCtx,
			Fresh:       fresh,
		}
		if err := m.publisher.PublishUpdate(ctx, event); err != nil {
			// Event delivery is best effort; the refresh already happened.
			logging.Warn().Str("region", r.String()).Err(err).Msg("update event publish failed")
		}
	}
	return nil
}

// discoverCurrentSeason merges the upstream's current season into the
// local season set. Failures are tolerated; the pass continues with
// whatever seasons are already known.
func (m *Manager) discoverCurrentSeason(ctx context.Context, r models.Region) {
	upstream, err := m.api.GetCurrentSeason(ctx, r, ratelimit.LanePriority)
	if err != nil {
		logging.Warn().Str("region", r.String()).Err(err).Msg("current season discovery failed")
		return
	}
	season := models.Season{
		BattlenetID: upstream.ID,
		Region:      r,
		Year:        upstream.Year,
		Number:      upstream.Number,
		Start:       time.Unix(upstream.StartDate, 0).UTC(),
		End:         time.Unix(upstream.EndDate, 0).UTC(),
	}
	if _, err := m.seasons.Merge(ctx, season); err != nil {
		logging.Warn().Str("region", r.String()).Err(err).Msg("season merge failed")
	}
}

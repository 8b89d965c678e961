// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
ladder.go - Ladder Refresh

Walks a season's league structure (queue x team type x tier), fetches
each division's ladder conditionally, and merges changed ladders into
the persistence layer. Individual league or division failures are
recorded in the pass's task context and do not abort the rest of the
season; the pass fails only when nothing could be refreshed at all.
*/

package sync

import (
	"context"
	"fmt"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

// queueTeamTypes lists the team types refreshed per queue. Random teams
// only exist for team queues.
func queueTeamTypes(queue models.QueueType) []models.TeamType {
	if queue == models.Queue1v1 || queue == models.QueueArchon {
		return []models.TeamType{models.TeamArranged}
	}
	return []models.TeamType{models.TeamArranged, models.TeamRandom}
}

// updateSeason refreshes one season's ladders in a region and returns
// the pass's task context.
func (m *Manager) updateSeason(ctx context.Context, r models.Region, season models.Season, isCurrent bool) (*models.LadderTaskContext, error) {
	since, err := m.vars.SeasonLastUpdated(r, season.BattlenetID)
	if err != nil {
		return nil, fmt.Errorf("load season freshness for %s/%d: %w", r, season.BattlenetID, err)
	}

	fresh := isCurrent && m.api.EffectiveRegion(r) == r
	taskCtx := models.NewLadderTaskContext(season)
	refreshed := 0

	for _, queue := range models.AllQueueTypes() {
		for _, teamType := range queueTeamTypes(queue) {
			for _, tier := range models.AllLeagueTiers() {
				if ctx.Err() != nil {
					return taskCtx, ctx.Err()
				}

				league, err := m.api.GetLeague(ctx, r, ratelimit.LanePriority, season.BattlenetID, queue, teamType, tier)
				if err != nil {
					taskCtx.AddError(err)
					continue
				}
				taskCtx.AddLeague(queue, tier)

				for _, leagueTier := range league.Tiers {
					for _, division := range leagueTier.Divisions {
						ladder, changed, err := m.api.GetLadderIfChanged(ctx, r, ratelimit.LanePriority, division.LadderID, since)
						if err != nil {
							taskCtx.AddError(err)
							continue
						}
						if !changed {
							continue
						}
						if err := m.ladders.MergeLadder(ctx, season, queue, tier, division, ladder, fresh); err != nil {
							taskCtx.AddError(err)
							continue
						}
						refreshed++
						// A merged full fetch resolves any failure
						// recorded for this division earlier.
						if m.api.HasDivisionError(division.LadderID) {
							m.api.AcknowledgeDivision(division.LadderID)
						}
					}
				}
			}
		}
	}

	if refreshed == 0 && len(taskCtx.Errors) > 0 {
		return taskCtx, fmt.Errorf("season %d refresh for %s failed: %s", season.BattlenetID, r, taskCtx.Errors[0])
	}

	logging.Info().
		Str("region", r.String()).
		Int("season", season.BattlenetID).
		Bool("current", isCurrent).
		Bool("fresh", fresh).
		Int("divisions", refreshed).
		Int("errors", len(taskCtx.Errors)).
		Msg("season ladders refreshed")
	return taskCtx, nil
}

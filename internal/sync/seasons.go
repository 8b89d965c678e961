// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
seasons.go - Season Selection

Decides which season a region refreshes on each pass. The current season
gets the bulk of the budget: it is refreshed whenever its age exceeds
TTL / currentUpdatesPerPeriod, and that check pre-empts historical
progress on every call. Otherwise historical seasons rotate one per call
in ascending order, wrapping after the newest, paced so the whole
rotation completes within roughly one TTL.
*/

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// getSeasonToUpdate picks the season due for refresh in a region, or nil
// when nothing is due yet. The bool reports whether the pick is the
// current season.
func (m *Manager) getSeasonToUpdate(ctx context.Context, r models.Region) (*models.Season, bool, error) {
	seasons, err := m.seasons.FindByRegion(ctx, r)
	if err != nil {
		return nil, false, fmt.Errorf("load seasons for %s: %w", r, err)
	}
	if len(seasons) == 0 {
		return nil, false, nil
	}

	cursor, err := m.vars.SeasonCursor(r)
	if err != nil {
		return nil, false, fmt.Errorf("load season cursor for %s: %w", r, err)
	}

	now := m.now()
	current := seasons[len(seasons)-1]

	currentInterval := m.cfg.TTL / time.Duration(m.cfg.CurrentSeasonUpdatesPerPeriod)
	if now.Sub(cursor.LastUpdatedCurrentSeason) >= currentInterval {
		return &current, true, nil
	}

	historical := seasons[:len(seasons)-1]
	if len(historical) == 0 {
		return nil, false, nil
	}

	historicalInterval := m.cfg.TTL / time.Duration(m.cfg.HistoricalUpdatesPerPeriod+len(historical))
	if now.Sub(cursor.LastUpdatedSeason) < historicalInterval {
		return nil, false, nil
	}

	idx := cursor.HistoricalSeasonPointer % len(historical)
	season := historical[idx]
	logging.Debug().
		Str("region", r.String()).
		Int("season", season.BattlenetID).
		Int("pointer", idx).
		Msg("historical season selected")
	return &season, false, nil
}

// recordSeasonRefresh persists the cursor changes after a successful
// season refresh: the freshness instants and, for historical seasons,
// the advanced rotation pointer (wrapping after the newest).
func (m *Manager) recordSeasonRefresh(r models.Region, season models.Season, isCurrent bool) error {
	cursor, err := m.vars.SeasonCursor(r)
	if err != nil {
		return fmt.Errorf("load season cursor for %s: %w", r, err)
	}

	now := m.now()
	if isCurrent {
		cursor.LastUpdatedCurrentSeason = now
	} else {
		cursor.LastUpdatedSeason = now
		cursor.HistoricalSeasonPointer++
	}

	if err := m.vars.SetSeasonCursor(r, cursor); err != nil {
		return fmt.Errorf("persist season cursor for %s: %w", r, err)
	}
	return m.vars.SetSeasonLastUpdated(r, season.BattlenetID, now)
}

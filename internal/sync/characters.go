// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
characters.go - Character Backlog Refresh

Walks every known character on a resumable cursor, refreshing names and
clan tags from legacy profiles. Each pass processes
ceil(outstanding / updatesPerTTL) rows so a stable backlog completes
within one TTL window. The cursor only advances past rows that were
actually processed; a mid-batch failure persists progress up to the last
successful row and surfaces the error.
*/

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

const characterBacklog = "character"

// batchSize computes how many backlog rows one pass handles so the full
// backlog completes within one TTL. Never below 1 while work remains.
func batchSize(outstanding int64, updatesPerTTL int) int {
	if outstanding <= 0 {
		return 0
	}
	if updatesPerTTL < 1 {
		updatesPerTTL = 1
	}
	per := int64(updatesPerTTL)
	return int((outstanding + per - 1) / per)
}

// updateCharacters runs one character backlog pass.
func (m *Manager) updateCharacters(ctx context.Context) error {
	cursor, err := m.vars.EntityCursor(characterBacklog)
	if err != nil {
		return fmt.Errorf("load character cursor: %w", err)
	}
	if cursor.CaughtUp() {
		cursor.LastID = 0
	}

	outstanding, err := m.characters.Count(ctx)
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}
	size := batchSize(outstanding, m.cfg.CharacterUpdatesPerTTL)
	if size == 0 {
		return nil
	}
	metrics.BacklogBatchSize.WithLabelValues(characterBacklog).Observe(float64(size))

	batch, err := m.characters.ListAfter(ctx, cursor.LastID, size)
	if err != nil {
		return fmt.Errorf("list characters after %d: %w", cursor.LastID, err)
	}
	if len(batch) == 0 {
		// Full pass complete; the next one restarts from the beginning.
		cursor.LastID = models.CursorCaughtUp
		cursor.LastRun = m.now()
		if err := m.vars.SetEntityCursor(characterBacklog, cursor); err != nil {
			return fmt.Errorf("persist character cursor: %w", err)
		}
		logging.Debug().Msg("character backlog caught up")
		return nil
	}

	var refreshErr error
	for _, ch := range batch {
		if ctx.Err() != nil {
			refreshErr = ctx.Err()
			break
		}
		profile, err := m.api.GetLegacyProfile(ctx, ch.Region, ratelimit.LaneDefault, ch.RealmID, ch.BattlenetID)
		if err != nil {
			refreshErr = fmt.Errorf("refresh character %d: %w", ch.ID, err)
			break
		}
		if profile.DisplayName != "" {
			ch.Name = profile.DisplayName
		}
		ch.Updated = m.now()
		if err := m.characters.Update(ctx, ch); err != nil {
			refreshErr = fmt.Errorf("persist character %d: %w", ch.ID, err)
			break
		}
		// Only rows processed end to end move the cursor.
		cursor.LastID = ch.ID
	}

	cursor.LastRun = m.now()
	if err := m.vars.SetEntityCursor(characterBacklog, cursor); err != nil && refreshErr == nil {
		refreshErr = fmt.Errorf("persist character cursor: %w", err)
	}
	if refreshErr != nil && !errors.Is(refreshErr, context.Canceled) {
		return refreshErr
	}
	return nil
}

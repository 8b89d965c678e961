// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
clans.go - Clan Membership Backlog Refresh

Applies the character cursor-and-batch pattern to characters whose clan
membership is stale: resolve the current clan tag from the legacy
profile, merge the clan, and update or drop the membership. Memberships
whose character no longer exists are removed at the end of each pass.
*/

package sync

import (
	"context"
	"fmt"

	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

const clanMemberBacklog = "clan_member"

// updateClanMembers runs one clan membership backlog pass.
func (m *Manager) updateClanMembers(ctx context.Context) error {
	cursor, err := m.vars.EntityCursor(clanMemberBacklog)
	if err != nil {
		return fmt.Errorf("load clan member cursor: %w", err)
	}
	if cursor.CaughtUp() {
		cursor.LastID = 0
	}

	outstanding, err := m.clans.CountInactiveMembers(ctx)
	if err != nil {
		return fmt.Errorf("count inactive clan members: %w", err)
	}
	size := batchSize(outstanding, m.cfg.ClanMemberUpdatesPerTTL)
	if size == 0 {
		return nil
	}
	metrics.BacklogBatchSize.WithLabelValues(clanMemberBacklog).Observe(float64(size))

	batch, err := m.clans.InactiveMembers(ctx, cursor.LastID, size)
	if err != nil {
		return fmt.Errorf("list inactive clan members after %d: %w", cursor.LastID, err)
	}
	if len(batch) == 0 {
		cursor.LastID = models.CursorCaughtUp
		cursor.LastRun = m.now()
		if err := m.vars.SetEntityCursor(clanMemberBacklog, cursor); err != nil {
			return fmt.Errorf("persist clan member cursor: %w", err)
		}
		logging.Debug().Msg("clan member backlog caught up")
		return nil
	}

	var refreshErr error
	for _, ch := range batch {
		if ctx.Err() != nil {
			refreshErr = ctx.Err()
			break
		}
		if err := m.refreshMembership(ctx, ch); err != nil {
			refreshErr = err
			break
		}
		cursor.LastID = ch.ID
	}

	if _, err := m.clans.RemoveOrphanMemberships(ctx); err != nil && refreshErr == nil {
		refreshErr = fmt.Errorf("remove orphan memberships: %w", err)
	}

	cursor.LastRun = m.now()
	if err := m.vars.SetEntityCursor(clanMemberBacklog, cursor); err != nil && refreshErr == nil {
		refreshErr = fmt.Errorf("persist clan member cursor: %w", err)
	}
	return refreshErr
}

// refreshMembership updates one character's clan membership from its
// legacy profile. No clan tag means the character left its clan.
func (m *Manager) refreshMembership(ctx context.Context, ch models.Character) error {
	profile, err := m.api.GetLegacyProfile(ctx, ch.Region, ratelimit.LaneDefault, ch.RealmID, ch.BattlenetID)
	if err != nil {
		return fmt.Errorf("resolve clan for character %d: %w", ch.ID, err)
	}

	if profile.ClanTag == "" {
		if err := m.clans.RemoveMembership(ctx, ch.ID); err != nil {
			return fmt.Errorf("remove membership for character %d: %w", ch.ID, err)
		}
		return nil
	}

	clan, err := m.clans.Merge(ctx, models.Clan{
		Tag:    profile.ClanTag,
		Name:   profile.ClanName,
		Region: ch.Region,
	})
	if err != nil {
		return fmt.Errorf("merge clan %q: %w", profile.ClanTag, err)
	}
	if err := m.clans.SaveMembership(ctx, ch.ID, clan.ID); err != nil {
		return fmt.Errorf("save membership for character %d: %w", ch.ID, err)
	}
	return nil
}

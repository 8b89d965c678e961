// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
repositories.go - Persistence Boundary

The orchestrator does not own durable entity storage; it drives external
repositories through these interfaces. Implementations live outside this
module (the analytics service owns the SQL schema). Only the key-value
variable store, used for cursors and watermarks, is owned locally.
*/

package sync

import (
	"context"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
)

// SeasonRepository stores locally known seasons per region.
type SeasonRepository interface {
	// Merge inserts or updates a season and returns the stored row.
	Merge(ctx context.Context, season models.Season) (models.Season, error)

	// FindByRegion returns all known seasons for a region in ascending
	// BattlenetID order.
	FindByRegion(ctx context.Context, region models.Region) ([]models.Season, error)
}

// LadderRepository merges fetched ladder pages into persistent storage.
type LadderRepository interface {
	// MergeLadder upserts the teams of one division's ladder, including
	// team members and their characters. The fresh flag marks data from
	// a current-season refresh over the standard route.
	MergeLadder(
		ctx context.Context,
		season models.Season,
		queue models.QueueType,
		tier models.LeagueTier,
		division blizzard.Division,
		ladder *blizzard.Ladder,
		fresh bool,
	) error
}

// CharacterRepository exposes the character backlog.
type CharacterRepository interface {
	// Count returns the total number of known characters.
	Count(ctx context.Context) (int64, error)

	// ListAfter returns up to limit characters with ID > lastID in
	// ascending ID order.
	ListAfter(ctx context.Context, lastID int64, limit int) ([]models.Character, error)

	// Update persists refreshed character fields.
	Update(ctx context.Context, character models.Character) error
}

// ClanRepository stores clans and clan memberships.
type ClanRepository interface {
	// Merge inserts or updates a clan by (tag, region) and returns the
	// stored row with its ID.
	Merge(ctx context.Context, clan models.Clan) (models.Clan, error)

	// CountInactiveMembers returns how many clan memberships are stale.
	CountInactiveMembers(ctx context.Context) (int64, error)

	// InactiveMembers returns up to limit characters with stale clan
	// membership and ID > lastID, ascending.
	InactiveMembers(ctx context.Context, lastID int64, limit int) ([]models.Character, error)

	// SaveMembership records that a character currently belongs to a clan.
	SaveMembership(ctx context.Context, characterID, clanID int64) error

	// RemoveMembership drops a character's clan membership.
	RemoveMembership(ctx context.Context, characterID int64) error

	// RemoveOrphanMemberships drops memberships whose character no
	// longer exists, returning how many were removed.
	RemoveOrphanMemberships(ctx context.Context) (int64, error)
}

// AccountRepository exposes the retention maintenance operations.
type AccountRepository interface {
	// RemoveEmpty deletes accounts with no remaining characters,
	// returning how many were removed.
	RemoveEmpty(ctx context.Context) (int64, error)

	// Anonymize strips personal data from accounts and their characters
	// whose last update falls in [from, to), returning how many accounts
	// were touched.
	Anonymize(ctx context.Context, from, to time.Time) (int64, error)
}

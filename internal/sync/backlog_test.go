// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
)

func TestBatchSize(t *testing.T) {
	tests := []struct {
		outstanding int64
		perTTL      int
		want        int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{9999, 4, 2500},
		{9999, 10, 1000},
		{9999, 1, 9999},
		{10000, 4, 2500},
		{10001, 4, 2501},
		{5, 0, 5}, // degenerate config falls back to one pass
	}
	for _, tt := range tests {
		if got := batchSize(tt.outstanding, tt.perTTL); got != tt.want {
			t.Errorf("batchSize(%d, %d) = %d, want %d", tt.outstanding, tt.perTTL, got, tt.want)
		}
	}
}

func charRows(ids ...int64) []models.Character {
	out := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Character{ID: id, Region: models.RegionEU, RealmID: 1, BattlenetID: id * 10, Name: "old"})
	}
	return out
}

func TestCharacterBacklogAdvancesCursor(t *testing.T) {
	h := newHarness(t)
	h.characters.chars = charRows(1, 2, 3, 4, 5, 6, 7, 8)
	// 8 outstanding / 4 per TTL = batch of 2.

	if err := h.manager.updateCharacters(context.Background()); err != nil {
		t.Fatal(err)
	}

	cursor, err := h.vars.EntityCursor(characterBacklog)
	if err != nil {
		t.Fatal(err)
	}
	if cursor.LastID != 2 {
		t.Fatalf("cursor.LastID = %d, want 2", cursor.LastID)
	}
	if len(h.characters.updated) != 2 {
		t.Fatalf("updated %d characters, want 2", len(h.characters.updated))
	}

	// The next pass resumes after the cursor.
	if err := h.manager.updateCharacters(context.Background()); err != nil {
		t.Fatal(err)
	}
	cursor, _ = h.vars.EntityCursor(characterBacklog)
	if cursor.LastID != 4 {
		t.Fatalf("cursor.LastID after second pass = %d, want 4", cursor.LastID)
	}
}

func TestCharacterBacklogEmptyResultSetsSentinel(t *testing.T) {
	h := newHarness(t)
	h.characters.chars = charRows(1, 2)
	if err := h.vars.SetEntityCursor(characterBacklog, models.EntityUpdateCursor{LastID: 2}); err != nil {
		t.Fatal(err)
	}

	if err := h.manager.updateCharacters(context.Background()); err != nil {
		t.Fatal(err)
	}

	cursor, err := h.vars.EntityCursor(characterBacklog)
	if err != nil {
		t.Fatal(err)
	}
	if !cursor.CaughtUp() {
		t.Fatalf("expected caught-up sentinel, got %d", cursor.LastID)
	}

	// A caught-up cursor restarts from the beginning on the next pass.
	if err := h.manager.updateCharacters(context.Background()); err != nil {
		t.Fatal(err)
	}
	cursor, _ = h.vars.EntityCursor(characterBacklog)
	if cursor.LastID != 1 {
		t.Fatalf("expected restart from the beginning, cursor at %d", cursor.LastID)
	}
}

func TestCharacterBacklogFailureKeepsCursorAtLastSuccess(t *testing.T) {
	h := newHarness(t)
	h.characters.chars = charRows(1, 2, 3, 4)
	// Batch of 1 per pass would be 1; force a bigger batch.
	h.characters.countOverride = 16 // batch = 4

	boom := errors.New("profile fetch failed")
	h.api.profileFn = func(r models.Region, realm int, profileID int64) (*blizzard.LegacyProfile, error) {
		if profileID == 30 { // character 3
			return nil, boom
		}
		return &blizzard.LegacyProfile{ID: profileID, Realm: realm, DisplayName: "new"}, nil
	}

	err := h.manager.updateCharacters(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fetch error, got %v", err)
	}

	cursor, _ := h.vars.EntityCursor(characterBacklog)
	if cursor.LastID != 2 {
		t.Fatalf("cursor must stop at the last processed row, got %d", cursor.LastID)
	}
	if len(h.characters.updated) != 2 {
		t.Fatalf("updated %d characters before the failure, want 2", len(h.characters.updated))
	}
}

func TestClanMembershipRefresh(t *testing.T) {
	h := newHarness(t)
	h.clans.inactive = charRows(1, 2, 3, 4)
	// 4 outstanding / 2 per TTL = batch of 2.

	h.api.profileFn = func(r models.Region, realm int, profileID int64) (*blizzard.LegacyProfile, error) {
		if profileID == 10 { // character 1 left its clan
			return &blizzard.LegacyProfile{ID: profileID, Realm: realm}, nil
		}
		return &blizzard.LegacyProfile{ID: profileID, Realm: realm, ClanTag: "Pulse", ClanName: "SC2 Pulse"}, nil
	}

	if err := h.manager.updateClanMembers(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.clans.mu.Lock()
	defer h.clans.mu.Unlock()
	if len(h.clans.removed) != 1 || h.clans.removed[0] != 1 {
		t.Fatalf("expected membership 1 removed, got %v", h.clans.removed)
	}
	if _, ok := h.clans.memberships[2]; !ok {
		t.Fatal("character 2 should have a saved membership")
	}
	if _, ok := h.clans.clans["Pulse"]; !ok {
		t.Fatal("clan Pulse should have been merged")
	}
	if h.clans.orphans != 1 {
		t.Fatalf("orphan cleanup should run once per pass, ran %d times", h.clans.orphans)
	}
}

func TestAnonymizeSweep(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	h.manager.now = func() time.Time { return now }

	if err := h.manager.anonymize(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.accounts.mu.Lock()
	if h.accounts.removed != 1 {
		t.Fatal("empty account removal should run")
	}
	if len(h.accounts.anonymized) != 1 {
		t.Fatalf("expected one anonymize call, got %d", len(h.accounts.anonymized))
	}
	first := h.accounts.anonymized[0]
	h.accounts.mu.Unlock()

	// First sweep catches up in bulk from the fixed origin.
	origin := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	wantTo := now.Add(-30 * 24 * time.Hour)
	if !first.from.Equal(origin) || !first.to.Equal(wantTo) {
		t.Fatalf("first sweep window = [%v, %v), want [%v, %v)", first.from, first.to, origin, wantTo)
	}

	// Steady state: next sweep starts where the last one ended.
	later := now.Add(24 * time.Hour)
	h.manager.now = func() time.Time { return later }
	if err := h.manager.anonymize(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.accounts.mu.Lock()
	second := h.accounts.anonymized[1]
	h.accounts.mu.Unlock()
	if !second.from.Equal(wantTo) {
		t.Fatalf("second sweep should resume at %v, got %v", wantTo, second.from)
	}
	if !second.to.Equal(later.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("second sweep end = %v", second.to)
	}
}

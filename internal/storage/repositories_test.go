// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package storage

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
)

func newTestEntityStore(t *testing.T) *EntityStore {
	t.Helper()
	vars := newTestStore(t)
	es := NewEntityStore(vars, time.Hour)
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestMergeSeasonIsIdempotent(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()

	first, err := es.Seasons().Merge(ctx, models.Season{BattlenetID: 57, Region: models.RegionEU, Year: 2023, Number: 2})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == 0 {
		t.Fatal("merge did not assign an ID")
	}

	second, err := es.Seasons().Merge(ctx, models.Season{BattlenetID: 57, Region: models.RegionEU, Year: 2023, Number: 3})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("re-merge assigned new ID %d, want %d", second.ID, first.ID)
	}

	seasons, err := es.FindByRegion(ctx, models.RegionEU)
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 || seasons[0].Number != 3 {
		t.Fatalf("seasons = %+v", seasons)
	}
}

func TestFindByRegionSortsAndFilters(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()

	for _, s := range []models.Season{
		{BattlenetID: 59, Region: models.RegionUS},
		{BattlenetID: 57, Region: models.RegionUS},
		{BattlenetID: 58, Region: models.RegionKR},
	} {
		if _, err := es.Seasons().Merge(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	seasons, err := es.FindByRegion(ctx, models.RegionUS)
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 2 || seasons[0].BattlenetID != 57 || seasons[1].BattlenetID != 59 {
		t.Fatalf("seasons = %+v", seasons)
	}
}

func ladderWithMembers(ids ...int64) *blizzard.Ladder {
	team := blizzard.Team{ID: "1.2.3", Rating: 3000}
	for _, id := range ids {
		team.Members = append(team.Members, blizzard.TeamMember{
			LegacyLink: blizzard.LegacyLink{ID: id, Realm: 1, Name: "player-" + strings.Repeat("x", int(id%3)+1)},
		})
	}
	return &blizzard.Ladder{Teams: []blizzard.Team{team}}
}

func TestMergeLadderCreatesCharacters(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()
	season := models.Season{BattlenetID: 57, Region: models.RegionEU}

	err := es.MergeLadder(ctx, season, models.Queue1v1, models.LeagueDiamond,
		blizzard.Division{ID: 7, LadderID: 700}, ladderWithMembers(101, 102), true)
	if err != nil {
		t.Fatal(err)
	}

	n, err := es.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("character count = %d, want 2", n)
	}

	// Re-merging the same division must not duplicate characters.
	err = es.MergeLadder(ctx, season, models.Queue1v1, models.LeagueDiamond,
		blizzard.Division{ID: 7, LadderID: 700}, ladderWithMembers(101, 102), true)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ = es.Count(ctx); n != 2 {
		t.Fatalf("character count after re-merge = %d, want 2", n)
	}
}

func TestListAfterPagination(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()
	season := models.Season{BattlenetID: 57, Region: models.RegionEU}

	err := es.MergeLadder(ctx, season, models.Queue1v1, models.LeagueDiamond,
		blizzard.Division{ID: 7, LadderID: 700}, ladderWithMembers(101, 102, 103, 104), false)
	if err != nil {
		t.Fatal(err)
	}

	page, err := es.ListAfter(ctx, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 {
		t.Fatalf("first page size = %d", len(page))
	}
	last := page[len(page)-1].ID

	rest, err := es.ListAfter(ctx, last, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ID <= last {
		t.Fatalf("second page = %+v", rest)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()
	season := models.Season{BattlenetID: 57, Region: models.RegionEU}

	err := es.MergeLadder(ctx, season, models.Queue1v1, models.LeagueDiamond,
		blizzard.Division{ID: 7, LadderID: 700}, ladderWithMembers(101), false)
	if err != nil {
		t.Fatal(err)
	}
	chars, err := es.ListAfter(ctx, 0, 10)
	if err != nil || len(chars) != 1 {
		t.Fatalf("characters = %+v, err = %v", chars, err)
	}
	charID := chars[0].ID

	clan, err := es.Clans().Merge(ctx, models.Clan{Tag: "zrg", Name: "Zerglings", Region: models.RegionEU})
	if err != nil {
		t.Fatal(err)
	}
	if err := es.SaveMembership(ctx, charID, clan.ID); err != nil {
		t.Fatal(err)
	}

	chars, _ = es.ListAfter(ctx, 0, 10)
	if chars[0].ClanID == nil || *chars[0].ClanID != clan.ID {
		t.Fatalf("character clan link = %v", chars[0].ClanID)
	}

	// A fresh membership is not inactive.
	if n, _ := es.CountInactiveMembers(ctx); n != 0 {
		t.Fatalf("inactive members = %d, want 0", n)
	}

	// Age the membership past the staleness window.
	es.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := es.CountInactiveMembers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("inactive members = %d, want 1", n)
	}
	stale, err := es.InactiveMembers(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != charID {
		t.Fatalf("stale members = %+v", stale)
	}

	if err := es.RemoveMembership(ctx, charID); err != nil {
		t.Fatal(err)
	}
	chars, _ = es.ListAfter(ctx, 0, 10)
	if chars[0].ClanID != nil {
		t.Fatal("clan link survived membership removal")
	}
	if n, _ := es.CountInactiveMembers(ctx); n != 0 {
		t.Fatalf("inactive members after removal = %d, want 0", n)
	}
}

func TestRemoveOrphanMemberships(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()

	clan, err := es.Clans().Merge(ctx, models.Clan{Tag: "zrg", Region: models.RegionEU})
	if err != nil {
		t.Fatal(err)
	}
	// Membership for a character that was never stored.
	if err := es.SaveMembership(ctx, 9999, clan.ID); err != nil {
		t.Fatal(err)
	}

	removed, err := es.RemoveOrphanMemberships(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestRemoveEmptyAccounts(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()

	kept, err := es.MergeAccount(ctx, models.Account{BattleTag: "Player#1234", Updated: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := es.MergeAccount(ctx, models.Account{BattleTag: "Ghost#5678", Updated: time.Now()}); err != nil {
		t.Fatal(err)
	}

	season := models.Season{BattlenetID: 57, Region: models.RegionEU}
	err = es.MergeLadder(ctx, season, models.Queue1v1, models.LeagueDiamond,
		blizzard.Division{ID: 7, LadderID: 700}, ladderWithMembers(101), false)
	if err != nil {
		t.Fatal(err)
	}
	chars, _ := es.ListAfter(ctx, 0, 10)
	ch := chars[0]
	ch.AccountID = kept.ID
	if err := es.Update(ctx, ch); err != nil {
		t.Fatal(err)
	}

	removed, err := es.RemoveEmpty(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if removed, _ = es.RemoveEmpty(ctx); removed != 0 {
		t.Fatalf("second pass removed = %d, want 0", removed)
	}
}

func TestAnonymizeWindow(t *testing.T) {
	es := newTestEntityStore(t)
	ctx := context.Background()
	old := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	acc, err := es.MergeAccount(ctx, models.Account{BattleTag: "Player#1234", Updated: old})
	if err != nil {
		t.Fatal(err)
	}
	recent, err := es.MergeAccount(ctx, models.Account{BattleTag: "Fresh#1", Updated: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	touched, err := es.Anonymize(ctx, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), old.AddDate(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if touched != 1 {
		t.Fatalf("touched = %d, want 1", touched)
	}

	// The stale account keeps its ID under a synthetic battle tag, the
	// recent one is untouched.
	again, err := es.MergeAccount(ctx, models.Account{BattleTag: "Fresh#1", Updated: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != recent.ID {
		t.Fatalf("recent account re-merge ID = %d, want %d", again.ID, recent.ID)
	}
	anon, err := es.MergeAccount(ctx, models.Account{BattleTag: "anonymous#" + strconv.FormatInt(acc.ID, 10), Updated: old})
	if err != nil {
		t.Fatal(err)
	}
	if anon.ID != acc.ID {
		t.Fatalf("anonymized account lost its ID: got %d, want %d", anon.ID, acc.ID)
	}
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

// Package models defines the domain entities shared across LadderSync:
// regions, seasons, ladder structure enums, characters, clans, and the
// cursors that drive incremental updates.
//
// Upstream API response shapes live in the blizzard subpackage; this package
// holds only what the orchestrator and repositories exchange.
package models

import (
	"math"
	"time"
)

// QueueType identifies a ladder queue (game mode).
type QueueType string

const (
	Queue1v1    QueueType = "LOTV_1V1"
	Queue2v2    QueueType = "LOTV_2V2"
	Queue3v3    QueueType = "LOTV_3V3"
	Queue4v4    QueueType = "LOTV_4V4"
	QueueArchon QueueType = "LOTV_ARCHON"
)

// AllQueueTypes returns every queue refreshed during a ladder pass.
func AllQueueTypes() []QueueType {
	return []QueueType{Queue1v1, Queue2v2, Queue3v3, Queue4v4, QueueArchon}
}

// TeamType distinguishes arranged from random teams.
type TeamType string

const (
	TeamArranged TeamType = "ARRANGED"
	TeamRandom   TeamType = "RANDOM"
)

// LeagueTier identifies a ladder league tier.
type LeagueTier int

const (
	LeagueBronze LeagueTier = iota
	LeagueSilver
	LeagueGold
	LeaguePlatinum
	LeagueDiamond
	LeagueMaster
	LeagueGrandmaster
)

// AllLeagueTiers returns every league tier in ascending order.
func AllLeagueTiers() []LeagueTier {
	return []LeagueTier{
		LeagueBronze, LeagueSilver, LeagueGold, LeaguePlatinum,
		LeagueDiamond, LeagueMaster, LeagueGrandmaster,
	}
}

func (l LeagueTier) String() string {
	switch l {
	case LeagueBronze:
		return "BRONZE"
	case LeagueSilver:
		return "SILVER"
	case LeagueGold:
		return "GOLD"
	case LeaguePlatinum:
		return "PLATINUM"
	case LeagueDiamond:
		return "DIAMOND"
	case LeagueMaster:
		return "MASTER"
	case LeagueGrandmaster:
		return "GRANDMASTER"
	default:
		return "UNKNOWN"
	}
}

// Season is a locally known ladder season for one region.
type Season struct {
	ID          int64     `json:"id"`
	BattlenetID int       `json:"battlenetId"`
	Region      Region    `json:"region"`
	Year        int       `json:"year"`
	Number      int       `json:"number"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Character is a locally known player character (profile).
type Character struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"accountId"`
	Region      Region    `json:"region"`
	RealmID     int       `json:"realmId"`
	BattlenetID int64     `json:"battlenetId"`
	Name        string    `json:"name"`
	ClanID      *int64    `json:"clanId,omitempty"`
	Updated     time.Time `json:"updated"`
}

// Account groups characters belonging to one player account.
type Account struct {
	ID        int64     `json:"id"`
	BattleTag string    `json:"battleTag"`
	Updated   time.Time `json:"updated"`
}

// Clan is a locally known clan.
type Clan struct {
	ID     int64  `json:"id"`
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Region Region `json:"region"`
}

// ClanMember links a character to a clan with a staleness instant.
type ClanMember struct {
	CharacterID int64     `json:"characterId"`
	ClanID      int64     `json:"clanId"`
	Updated     time.Time `json:"updated"`
}

// SeasonUpdateCursor tracks per-region season refresh progress.
type SeasonUpdateCursor struct {
	LastUpdatedSeason        time.Time `json:"lastUpdatedSeason"`
	LastUpdatedCurrentSeason time.Time `json:"lastUpdatedCurrentSeason"`
	HistoricalSeasonPointer  int       `json:"historicalSeasonPointer"`
}

// CursorCaughtUp is the sentinel LastID meaning a backlog cursor has
// completed a full pass and restarts from 0 on the next one.
const CursorCaughtUp int64 = math.MaxInt64

// EntityUpdateCursor is a resumable backlog pointer (characters, clan
// members, stats nullification).
type EntityUpdateCursor struct {
	LastID  int64     `json:"lastId"`
	LastRun time.Time `json:"lastRun"`
}

// CaughtUp reports whether the cursor has finished a full pass.
func (c EntityUpdateCursor) CaughtUp() bool { return c.LastID == CursorCaughtUp }

// LadderTaskContext accumulates the work done for one season during an
// update pass: which league tiers were requested per queue, and the errors
// encountered. Transient, created per pass.
type LadderTaskContext struct {
	Season       Season                     `json:"season"`
	QueueLeagues map[QueueType][]LeagueTier `json:"queueLeagues"`
	Errors       []string                   `json:"errors,omitempty"`
}

// NewLadderTaskContext creates an empty task context for the given season.
func NewLadderTaskContext(season Season) *LadderTaskContext {
	return &LadderTaskContext{
		Season:       season,
		QueueLeagues: make(map[QueueType][]LeagueTier),
	}
}

// AddLeague records that a queue/league combination was requested.
func (c *LadderTaskContext) AddLeague(queue QueueType, league LeagueTier) {
	c.QueueLeagues[queue] = append(c.QueueLeagues[queue], league)
}

// AddError records a non-fatal error for this pass.
func (c *LadderTaskContext) AddError(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err.Error())
	}
}

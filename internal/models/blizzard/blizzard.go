// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

// Package blizzard defines the wire shapes of the upstream ladder API.
//
// Field names follow the upstream JSON exactly; the sync layer converts these
// into internal/models entities. All types are plain data with no behavior.
package blizzard

// Season is the upstream season resource.
type Season struct {
	ID        int    `json:"seasonId"`
	Number    int    `json:"number"`
	Year      int    `json:"year"`
	StartDate int64  `json:"startDate"` // unix seconds
	EndDate   int64  `json:"endDate"`   // unix seconds
	Status    string `json:"status,omitempty"`
}

// League is the league resource for one season/queue/team-type/tier
// combination, containing the divisions whose ladders can be fetched.
type League struct {
	SeasonID int          `json:"seasonId"`
	QueueID  int          `json:"queueId"`
	TeamType int          `json:"teamType"`
	LeagueID int          `json:"leagueId"`
	Tiers    []LeagueTier `json:"tier"`
}

// LeagueTier is one tier within a league.
type LeagueTier struct {
	ID        int        `json:"id"`
	MinRating int        `json:"min_rating"`
	MaxRating int        `json:"max_rating"`
	Divisions []Division `json:"division"`
}

// Division points at a concrete ladder.
type Division struct {
	ID          int   `json:"id"`
	LadderID    int64 `json:"ladder_id"`
	MemberCount int   `json:"member_count"`
}

// Ladder is a page of ranked teams for one division.
type Ladder struct {
	Teams []Team `json:"team"`
}

// Team is one ranked ladder team.
type Team struct {
	ID            string       `json:"id"`
	Rating        int          `json:"rating"`
	Wins          int          `json:"wins"`
	Losses        int          `json:"losses"`
	Ties          int          `json:"ties"`
	Points        int          `json:"points"`
	JoinTimestamp int64        `json:"join_time_stamp"`
	LastPlayed    int64        `json:"last_played_time_stamp"`
	Members       []TeamMember `json:"member"`
}

// TeamMember is one player on a ladder team.
type TeamMember struct {
	LegacyLink   LegacyLink     `json:"legacy_link"`
	CharacterTag string         `json:"character_link,omitempty"`
	ClanTag      string         `json:"clan_link,omitempty"`
	RaceGames    map[string]int `json:"played_race_count,omitempty"`
}

// LegacyLink identifies a character by realm/profile id.
type LegacyLink struct {
	ID    int64  `json:"id"`
	Realm int    `json:"realm"`
	Name  string `json:"name"`
}

// LegacyProfile is the legacy profile resource for one character.
type LegacyProfile struct {
	ID          int64  `json:"id"`
	Realm       int    `json:"realm"`
	DisplayName string `json:"displayName"`
	ClanTag     string `json:"clanTag,omitempty"`
	ClanName    string `json:"clanName,omitempty"`
	Career      struct {
		SeasonTotalGames int `json:"seasonTotalGames"`
		CareerTotalGames int `json:"careerTotalGames"`
	} `json:"career"`
}

// ProfileLadder is the profile-scoped view of a ladder.
type ProfileLadder struct {
	LadderTeams   []Team `json:"ladderTeams"`
	League        string `json:"league"`
	CurrentRank   int    `json:"currentRank"`
	RanksAndPools []struct {
		Rank      int `json:"rank"`
		MMR       int `json:"mmr"`
		BonusPool int `json:"bonusPool"`
	} `json:"ranksAndPools"`
}

// MatchHistory is a page of recent matches for one character.
type MatchHistory struct {
	Matches []Match `json:"matches"`
}

// Match is one played game.
type Match struct {
	Map      string `json:"map"`
	Type     string `json:"type"`
	Decision string `json:"decision"`
	Speed    string `json:"speed"`
	Date     int64  `json:"date"` // unix seconds
}

// PlayerCharacters is the account resource listing characters.
type PlayerCharacters struct {
	Characters []PlayerCharacter `json:"characters"`
}

// PlayerCharacter is one character in an account listing.
type PlayerCharacter struct {
	ID      int64  `json:"id"`
	Realm   int    `json:"realm"`
	Region  int    `json:"region"`
	Name    string `json:"name"`
	ClanTag string `json:"clanTag,omitempty"`
}

// Patch is one game patch entry.
type Patch struct {
	Build   int64  `json:"build"`
	Version string `json:"version"`
	Live    int64  `json:"publish"` // unix seconds
}

// PatchList is the patch feed resource.
type PatchList struct {
	Patches []Patch `json:"patchNotes"`
}

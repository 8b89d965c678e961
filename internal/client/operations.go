// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
operations.go - Typed Upstream API Operations

One method per upstream resource. All methods accept a context for
cancellation, the logical region (redirects apply transparently), and the
budget lane to draw from.
*/

package client

import (
	"context"
	"fmt"

	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

// queueIDs maps queue types to their upstream numeric identifiers.
var queueIDs = map[models.QueueType]int{
	models.Queue1v1:    201,
	models.Queue2v2:    202,
	models.Queue3v3:    203,
	models.Queue4v4:    204,
	models.QueueArchon: 206,
}

// teamTypeIDs maps team types to their upstream numeric identifiers.
var teamTypeIDs = map[models.TeamType]int{
	models.TeamArranged: 0,
	models.TeamRandom:   1,
}

// GetCurrentSeason fetches the region's ongoing season.
func (c *Client) GetCurrentSeason(ctx context.Context, r models.Region, lane ratelimit.Lane) (*blizzard.Season, error) {
	var season blizzard.Season
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "season-current",
		path:     fmt.Sprintf("/sc2/ladder/season/%d", regionIDs[r]),
	}, &season)
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// GetSeasons fetches every season known to the region.
func (c *Client) GetSeasons(ctx context.Context, r models.Region, lane ratelimit.Lane) ([]blizzard.Season, error) {
	var index struct {
		Seasons []blizzard.Season `json:"seasons"`
	}
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "season-index",
		path:     "/data/sc2/season/index",
	}, &index)
	if err != nil {
		return nil, err
	}
	return index.Seasons, nil
}

// GetLeague fetches one league for a season, queue, team type, and tier
// combination, including its divisions.
func (c *Client) GetLeague(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	seasonID int,
	queue models.QueueType,
	teamType models.TeamType,
	tier models.LeagueTier,
) (*blizzard.League, error) {
	var league blizzard.League
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "league",
		path:     fmt.Sprintf("/data/sc2/league/%d/%d/%d/%d", seasonID, queueIDs[queue], teamTypeIDs[teamType], int(tier)),
	}, &league)
	if err != nil {
		return nil, err
	}
	return &league, nil
}

// GetLadder fetches the ladder behind a division.
func (c *Client) GetLadder(ctx context.Context, r models.Region, lane ratelimit.Lane, division blizzard.Division) (*blizzard.Ladder, error) {
	return c.GetLadderByID(ctx, r, lane, division.LadderID)
}

// GetLadderByID fetches one ladder unconditionally.
func (c *Client) GetLadderByID(ctx context.Context, r models.Region, lane ratelimit.Lane, ladderID int64) (*blizzard.Ladder, error) {
	var ladder blizzard.Ladder
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "ladder",
		path:     fmt.Sprintf("/data/sc2/ladder/%d", ladderID),
	}, &ladder)
	if err != nil {
		return nil, err
	}
	return &ladder, nil
}

// GetLadderTeams streams one ladder's teams page by page. The consumer
// pulls pages; the stream ends after the first page with no teams.
func (c *Client) GetLadderTeams(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	ladderID int64,
) Seq[[]blizzard.Team] {
	return pages(ctx, func(ctx context.Context, page int) ([]blizzard.Team, bool, error) {
		var ladder blizzard.Ladder
		err := c.get(ctx, request{
			region:   r,
			lane:     lane,
			resource: "ladder-teams",
			path:     fmt.Sprintf("/data/sc2/ladder/%d?page=%d", ladderID, page),
		}, &ladder)
		if err != nil {
			return nil, false, err
		}
		return ladder.Teams, len(ladder.Teams) > 0, nil
	})
}

// GetProfileLadder fetches the profile-scoped view of a ladder.
func (c *Client) GetProfileLadder(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	realm int,
	profileID int64,
	ladderID int64,
) (*blizzard.ProfileLadder, error) {
	var ladder blizzard.ProfileLadder
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "profile-ladder",
		path:     fmt.Sprintf("/sc2/profile/%d/%d/%d/ladder/%d", regionIDs[r], realm, profileID, ladderID),
	}, &ladder)
	if err != nil {
		return nil, err
	}
	return &ladder, nil
}

// GetLegacyProfile fetches a character's legacy profile, the source of
// clan membership and career statistics.
func (c *Client) GetLegacyProfile(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	realm int,
	profileID int64,
) (*blizzard.LegacyProfile, error) {
	var profile blizzard.LegacyProfile
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "legacy-profile",
		path:     fmt.Sprintf("/sc2/legacy/profile/%d/%d/%d", regionIDs[r], realm, profileID),
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetMatches streams a character's recent match history page by page.
// The consumer pulls pages; stopping the iteration stops further
// requests. The stream ends after the first page with no matches.
func (c *Client) GetMatches(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	realm int,
	profileID int64,
) Seq[blizzard.MatchHistory] {
	return pages(ctx, func(ctx context.Context, page int) (blizzard.MatchHistory, bool, error) {
		var history blizzard.MatchHistory
		err := c.get(ctx, request{
			region:   r,
			lane:     lane,
			resource: "matches",
			path:     fmt.Sprintf("/sc2/legacy/profile/%d/%d/%d/matches?page=%d", regionIDs[r], realm, profileID, page),
		}, &history)
		if err != nil {
			return blizzard.MatchHistory{}, false, err
		}
		return history, len(history.Matches) > 0, nil
	})
}

// GetPlayerCharacters fetches the characters attached to an account.
func (c *Client) GetPlayerCharacters(ctx context.Context, r models.Region, lane ratelimit.Lane, accountID int64) (*blizzard.PlayerCharacters, error) {
	var chars blizzard.PlayerCharacters
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "player-characters",
		path:     fmt.Sprintf("/sc2/player/%d", accountID),
	}, &chars)
	if err != nil {
		return nil, err
	}
	return &chars, nil
}

// GetPatches fetches the game patch feed.
func (c *Client) GetPatches(ctx context.Context, r models.Region, lane ratelimit.Lane) (*blizzard.PatchList, error) {
	var patches blizzard.PatchList
	err := c.get(ctx, request{
		region:   r,
		lane:     lane,
		resource: "patches",
		path:     "/data/sc2/patch/index",
	}, &patches)
	if err != nil {
		return nil, err
	}
	return &patches, nil
}

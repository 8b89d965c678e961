// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
conditional.go - Modified-Since Ladder Fetching

Ladders change slowly outside peak hours, so the orchestrator fetches
them conditionally: "give me this ladder only if it changed since T".
The optimization is only sound while the cached-freshness assumption
holds, which a previous fetch error for the same ladder invalidates.
The division error tracker records those failures; an affected ladder is
fetched unconditionally until the error is explicitly acknowledged.
Retrying alone never clears a recorded error.
*/

package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
)

// divisionErrors tracks ladder ids whose last fetch failed.
type divisionErrors struct {
	mu     sync.Mutex
	failed map[int64]struct{}
}

func newDivisionErrors() *divisionErrors {
	return &divisionErrors{failed: make(map[int64]struct{})}
}

func (d *divisionErrors) record(ladderID int64) {
	d.mu.Lock()
	d.failed[ladderID] = struct{}{}
	d.mu.Unlock()
}

func (d *divisionErrors) has(ladderID int64) bool {
	d.mu.Lock()
	_, ok := d.failed[ladderID]
	d.mu.Unlock()
	return ok
}

func (d *divisionErrors) clear(ladderID int64) {
	d.mu.Lock()
	delete(d.failed, ladderID)
	d.mu.Unlock()
}

// GetLadderIfChanged fetches a ladder conditionally. When no error is
// recorded for ladderID, the request asks the upstream for data changed
// since the given instant; an unchanged ladder returns (nil, false, nil)
// without parsing. When an error is recorded, the conditional path is
// skipped and the ladder is fetched in full.
//
// Fetch failures are recorded against the ladder id. The record survives
// subsequent attempts, successful or not, until AcknowledgeDivision is
// called.
func (c *Client) GetLadderIfChanged(
	ctx context.Context,
	r models.Region,
	lane ratelimit.Lane,
	ladderID int64,
	since time.Time,
) (*blizzard.Ladder, bool, error) {
	conditional := !c.divErrs.has(ladderID) && !since.IsZero()

	req := request{
		region:   r,
		lane:     lane,
		resource: "ladder",
		path:     ladderPath(ladderID),
	}
	if conditional {
		req.ifModifiedSince = since
	}

	var ladder blizzard.Ladder
	err := c.get(ctx, req, &ladder)
	switch {
	case errors.Is(err, ErrNotModified):
		metrics.LadderFetches.WithLabelValues("unchanged").Inc()
		return nil, false, nil
	case err != nil:
		c.divErrs.record(ladderID)
		return nil, false, err
	}

	if conditional {
		metrics.LadderFetches.WithLabelValues("conditional").Inc()
	} else {
		metrics.LadderFetches.WithLabelValues("full").Inc()
	}
	return &ladder, true, nil
}

// AcknowledgeDivision clears a recorded fetch error for a ladder. Called
// by the orchestrator once the failure has been handled downstream;
// nothing else removes the record.
func (c *Client) AcknowledgeDivision(ladderID int64) {
	c.divErrs.clear(ladderID)
}

// HasDivisionError reports whether a fetch error is recorded for a ladder.
func (c *Client) HasDivisionError(ladderID int64) bool {
	return c.divErrs.has(ladderID)
}

func ladderPath(ladderID int64) string {
	return "/data/sc2/ladder/" + strconv.FormatInt(ladderID, 10)
}

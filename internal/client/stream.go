// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package client

import (
	"context"
	"iter"
)

// Seq is a lazily produced, pull-based result sequence. The consumer
// drives pagination: no request for the next page is issued until the
// previous element is consumed, and breaking out of the range loop stops
// further requests. Requests already in flight complete normally.
type Seq[T any] = iter.Seq2[T, error]

// pages adapts a page-fetching function into a Seq. fetch returns the page
// payload and whether another page may follow; the sequence ends on the
// first fetch error (after yielding it), on the last page, or when the
// consumer stops or the context is cancelled.
func pages[T any](ctx context.Context, fetch func(ctx context.Context, page int) (T, bool, error)) Seq[T] {
	return func(yield func(T, error) bool) {
		for page := 1; ; page++ {
			if ctx.Err() != nil {
				var zero T
				yield(zero, ctx.Err())
				return
			}
			item, more, err := fetch(ctx, page)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
			if !more {
				return
			}
		}
	}
}

// Collect drains a Seq into a slice, stopping at the first error.
func Collect[T any](seq Seq[T]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
)

// frozenBudget returns a budget whose clock never advances, so windows never
// roll over and grant counts per window can be asserted exactly.
func frozenBudget(cfg Config) *Budget {
	b := NewBudget(cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b
}

func TestLaneCaps(t *testing.T) {
	b := NewBudget(Config{PerSecond: 10, PerHour: 100, PriorityShare: 0.2})

	tests := []struct {
		name     string
		hardCap  int
		lane     Lane
		expected int
	}{
		{"default lane leaves priority reserve", 10, LaneDefault, 8},
		{"priority lane uses full cap", 10, LanePriority, 10},
		{"cap of one stays usable by default lane", 1, LaneDefault, 1},
		{"hour cap reserve", 100, LaneDefault, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.laneCap(tt.hardCap, tt.lane); got != tt.expected {
				t.Errorf("laneCap(%d, %s) = %d, want %d", tt.hardCap, tt.lane, got, tt.expected)
			}
		})
	}
}

func TestConcurrentGrantsNeverExceedCap(t *testing.T) {
	const secCap = 5
	b := frozenBudget(Config{PerSecond: secCap, PerHour: 100000})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Reserve(ctx, models.RegionEU, LanePriority); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != secCap {
		t.Errorf("expected exactly %d grants in a frozen window, got %d", secCap, got)
	}
}

func TestHourWindowBlocks(t *testing.T) {
	b := frozenBudget(Config{PerSecond: 1000, PerHour: 3})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
			t.Fatalf("grant %d failed: %v", i, err)
		}
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Reserve(shortCtx, models.RegionEU, LanePriority); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded once hour cap is spent, got %v", err)
	}
}

func TestSharedModePoolsRegions(t *testing.T) {
	b := frozenBudget(Config{Shared: true, PerSecond: 2, PerHour: 100000})

	ctx := context.Background()
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Fatalf("second grant failed: %v", err)
	}

	// EU spent the shared pool; KR must block too.
	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Reserve(shortCtx, models.RegionKR, LanePriority); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("shared mode: KR should draw from the same pool, got %v", err)
	}
}

func TestSeparateModeIndependentRegions(t *testing.T) {
	b := frozenBudget(Config{PerSecond: 1, PerHour: 100000})

	ctx := context.Background()
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Fatalf("EU grant failed: %v", err)
	}
	// KR has its own window.
	if err := b.Reserve(ctx, models.RegionKR, LanePriority); err != nil {
		t.Errorf("separate mode: KR should have independent quota, got %v", err)
	}
}

func TestPriorityLaneNotStarvedByDefault(t *testing.T) {
	b := frozenBudget(Config{PerSecond: 10, PerHour: 100000, PriorityShare: 0.2})

	ctx := context.Background()
	// Exhaust the default lane (8 of 10 with 20% reserve).
	for i := 0; i < 8; i++ {
		if err := b.Reserve(ctx, models.RegionEU, LaneDefault); err != nil {
			t.Fatalf("default grant %d failed: %v", i, err)
		}
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Reserve(shortCtx, models.RegionEU, LaneDefault); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("default lane should be exhausted, got %v", err)
	}

	// The reserved slice still serves priority immediately.
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Errorf("priority grant should use the reserve, got %v", err)
	}
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Errorf("second priority grant should fit under the hard cap, got %v", err)
	}
}

func TestRuntimeCapOverrideAndRevert(t *testing.T) {
	b := frozenBudget(Config{PerSecond: 10, PerHour: 100})

	b.SetCaps(models.RegionEU, Caps{PerSecond: 3, PerHour: 50})
	caps, overridden := b.CapsFor(models.RegionEU)
	if !overridden || caps.PerSecond != 3 || caps.PerHour != 50 {
		t.Errorf("expected override 3/50, got %+v overridden=%v", caps, overridden)
	}

	b.ClearCaps(models.RegionEU)
	caps, overridden = b.CapsFor(models.RegionEU)
	if overridden || caps.PerSecond != 10 || caps.PerHour != 100 {
		t.Errorf("expected revert to defaults 10/100, got %+v overridden=%v", caps, overridden)
	}
}

func TestInvalidCapOverrideIgnored(t *testing.T) {
	b := frozenBudget(Config{PerSecond: 10, PerHour: 100})

	b.SetCaps(models.RegionEU, Caps{PerSecond: 0, PerHour: 50})
	caps, overridden := b.CapsFor(models.RegionEU)
	if overridden || caps.PerSecond != 10 {
		t.Errorf("zero cap override should be ignored, got %+v", caps)
	}
}

func TestWindowRolloverReplenishes(t *testing.T) {
	b := NewBudget(Config{PerSecond: 1, PerHour: 100000})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	ctx := context.Background()
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}

	// Advance past the second window; the next reserve must succeed.
	now = now.Add(1100 * time.Millisecond)
	if err := b.Reserve(ctx, models.RegionEU, LanePriority); err != nil {
		t.Errorf("grant after rollover failed: %v", err)
	}
}

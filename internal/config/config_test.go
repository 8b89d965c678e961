// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no regions", func(c *Config) { c.Upstream.ActiveRegions = nil }},
		{"unknown region", func(c *Config) { c.Upstream.ActiveRegions = []string{"XX"} }},
		{"negative retries", func(c *Config) { c.Upstream.MaxRetries = -1 }},
		{"threshold above one", func(c *Config) { c.Upstream.ErrorRateThreshold = 1.5 }},
		{"zero per-second", func(c *Config) { c.RateLimit.PerSecond = 0 }},
		{"zero per-hour", func(c *Config) { c.RateLimit.PerHour = 0 }},
		{"full priority share", func(c *Config) { c.RateLimit.PriorityShare = 1 }},
		{"zero ttl", func(c *Config) { c.Update.TTL = 0 }},
		{"bad anonymize date", func(c *Config) { c.Update.FullAnonymizeSince = "not-a-date" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestRegions(t *testing.T) {
	cfg := Default()
	cfg.Upstream.ActiveRegions = []string{"EU", "KR", "bogus"}
	got := cfg.Regions()
	want := []models.Region{models.RegionEU, models.RegionKR}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFullAnonymizeOrigin(t *testing.T) {
	cfg := Default()
	origin := cfg.FullAnonymizeOrigin()
	want := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	if !origin.Equal(want) {
		t.Fatalf("got %v, want %v", origin, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9001
upstream:
  regions: [US, EU]
  max_retries: 3
ratelimit:
  per_second: 4
  priority_share: 0.5
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Upstream.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", cfg.Upstream.MaxRetries)
	}
	if cfg.RateLimit.PerSecond != 4 {
		t.Errorf("per_second = %d, want 4", cfg.RateLimit.PerSecond)
	}
	if cfg.RateLimit.PriorityShare != 0.5 {
		t.Errorf("priority_share = %f, want 0.5", cfg.RateLimit.PriorityShare)
	}
	// Untouched keys keep their defaults.
	if cfg.RateLimit.PerHour != 36000 {
		t.Errorf("per_hour = %d, want default 36000", cfg.RateLimit.PerHour)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LADDERSYNC_RATELIMIT_PER_SECOND", "7")
	t.Setenv("LADDERSYNC_UPSTREAM_REGIONS", "KR,CN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimit.PerSecond != 7 {
		t.Errorf("per_second = %d, want 7", cfg.RateLimit.PerSecond)
	}
	got := cfg.Regions()
	want := []models.Region{models.RegionKR, models.RegionCN}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("regions = %v, want %v", got, want)
	}
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

// Package config defines LadderSync's layered configuration: built-in
// defaults, an optional YAML file, and environment variable overrides, in
// that precedence order (env highest). Loading is handled by koanf v2.
//
// Runtime-mutable knobs (forced regions, per-region timeouts, rate caps)
// deliberately do NOT live here: they are served by atomic snapshot stores
// in the client and rate limiter so admin changes need no config reload.
package config

import (
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Update    UpdateConfig    `koanf:"update"`
	NATS      NATSConfig      `koanf:"nats"`
	Storage   StorageConfig   `koanf:"storage"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig configures the administrative HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// UpstreamConfig configures the resilient ladder client.
type UpstreamConfig struct {
	// ActiveRegions lists the logical regions to keep synchronized.
	ActiveRegions []string `koanf:"regions"`

	// BaseURLs maps region to its API base URL. Empty entries fall back
	// to the documented per-region default.
	BaseURLs map[string]string `koanf:"urls"`

	// Timeout is the default per-call timeout; overridable per region at
	// runtime through the admin surface.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds retries on transient failures per call.
	MaxRetries int `koanf:"max_retries"`

	// ErrorRateThreshold marks a region degraded at or above this
	// per-interval error rate (0..1).
	ErrorRateThreshold float64 `koanf:"error_rate_threshold"`

	// HealthUpdateInterval is the cadence of health-monitor recomputation.
	HealthUpdateInterval time.Duration `koanf:"health_update_interval"`

	// AutoForceRegion enables automatic redirection of degraded regions.
	AutoForceRegion bool `koanf:"auto_force_region"`

	// AutoForceDuration is the lifetime of an automatic redirect.
	AutoForceDuration time.Duration `koanf:"auto_force_duration"`

	// RedirectEvalInterval is the cadence of auto-redirect evaluation.
	RedirectEvalInterval time.Duration `koanf:"redirect_eval_interval"`
}

// RateLimitConfig configures the upstream request budget.
type RateLimitConfig struct {
	// Shared pools quota across regions instead of per-region windows.
	Shared bool `koanf:"shared"`

	PerSecond int `koanf:"per_second"`
	PerHour   int `koanf:"per_hour"`

	// PriorityShare is the window fraction reserved for the priority lane.
	PriorityShare float64 `koanf:"priority_share"`
}

// UpdateConfig tunes the incremental update orchestrator.
type UpdateConfig struct {
	// Interval is how often the supervised loop triggers an update run.
	Interval time.Duration `koanf:"interval"`

	// TTL is the window within which every entity must be refreshed.
	TTL time.Duration `koanf:"ttl"`

	// CurrentSeasonUpdatesPerPeriod divides the TTL into current-season
	// refresh slots.
	CurrentSeasonUpdatesPerPeriod int `koanf:"current_season_updates"`

	// HistoricalUpdatesPerPeriod paces historical season rotation.
	HistoricalUpdatesPerPeriod int `koanf:"historical_updates"`

	// CharacterUpdatesPerTTL spreads the character backlog over the TTL.
	CharacterUpdatesPerTTL int `koanf:"character_updates_per_ttl"`

	// ClanMemberUpdatesPerTTL spreads the clan-membership backlog.
	ClanMemberUpdatesPerTTL int `koanf:"clan_member_updates_per_ttl"`

	// RetentionTTL is the data-retention boundary for anonymization.
	RetentionTTL time.Duration `koanf:"retention_ttl"`

	// FullAnonymizeSince is the fixed origin used for bulk anonymization
	// catch-up, RFC 3339 date.
	FullAnonymizeSince string `koanf:"full_anonymize_since"`
}

// NATSConfig configures the update-event publisher.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Topic   string `koanf:"topic"`
}

// StorageConfig configures the badger-backed variable store.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// Default returns a Config with all documented default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8492,
			Timeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			ActiveRegions:        []string{"US", "EU", "KR"},
			BaseURLs:             map[string]string{},
			Timeout:              40 * time.Second,
			MaxRetries:           2,
			ErrorRateThreshold:   0.3,
			HealthUpdateInterval: 5 * time.Minute,
			AutoForceRegion:      false,
			AutoForceDuration:    time.Hour,
			RedirectEvalInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Shared:        false,
			PerSecond:     10,
			PerHour:       36000,
			PriorityShare: 0.2,
		},
		Update: UpdateConfig{
			Interval:                      5 * time.Minute,
			TTL:                           time.Hour,
			CurrentSeasonUpdatesPerPeriod: 6,
			HistoricalUpdatesPerPeriod:    1,
			CharacterUpdatesPerTTL:        4,
			ClanMemberUpdatesPerTTL:       2,
			RetentionTTL:                  30 * 24 * time.Hour,
			FullAnonymizeSince:            "2018-01-01",
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Topic:   "ladder.updates",
		},
		Storage: StorageConfig{
			Path:     "/data/laddersync",
			InMemory: false,
		},
	}
}

// Regions converts the configured active region names into models.Region
// values, dropping anything unrecognized (validation rejects those earlier).
func (c *Config) Regions() []models.Region {
	out := make([]models.Region, 0, len(c.Upstream.ActiveRegions))
	for _, s := range c.Upstream.ActiveRegions {
		if r, ok := models.ParseRegion(s); ok {
			out = append(out, r)
		}
	}
	return out
}

// FullAnonymizeOrigin parses the configured fixed anonymization origin.
// Validation guarantees it parses; a zero time is returned otherwise.
func (c *Config) FullAnonymizeOrigin() time.Time {
	t, err := time.Parse("2006-01-02", c.Update.FullAnonymizeSince)
	if err != nil {
		return time.Time{}
	}
	return t
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package config

import (
	"fmt"
	"time"

	"github.com/sc2-pulse/laddersync/internal/models"
)

// Validate checks the configuration for internal consistency. It is called
// by Load after all layers are merged; call it manually for hand-built
// configs in tests.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateUpstream,
		c.validateRateLimit,
		c.validateUpdate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if len(c.Upstream.ActiveRegions) == 0 {
		return fmt.Errorf("upstream.regions must name at least one region")
	}
	for _, s := range c.Upstream.ActiveRegions {
		if _, ok := models.ParseRegion(s); !ok {
			return fmt.Errorf("upstream.regions contains unknown region %q", s)
		}
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.MaxRetries < 0 || c.Upstream.MaxRetries > 10 {
		return fmt.Errorf("upstream.max_retries must be 0-10, got %d", c.Upstream.MaxRetries)
	}
	if c.Upstream.ErrorRateThreshold <= 0 || c.Upstream.ErrorRateThreshold > 1 {
		return fmt.Errorf("upstream.error_rate_threshold must be in (0,1], got %f", c.Upstream.ErrorRateThreshold)
	}
	if c.Upstream.AutoForceDuration <= 0 {
		return fmt.Errorf("upstream.auto_force_duration must be positive, got %s", c.Upstream.AutoForceDuration)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("ratelimit.per_second must be positive, got %d", c.RateLimit.PerSecond)
	}
	if c.RateLimit.PerHour <= 0 {
		return fmt.Errorf("ratelimit.per_hour must be positive, got %d", c.RateLimit.PerHour)
	}
	if c.RateLimit.PriorityShare < 0 || c.RateLimit.PriorityShare >= 1 {
		return fmt.Errorf("ratelimit.priority_share must be in [0,1), got %f", c.RateLimit.PriorityShare)
	}
	return nil
}

func (c *Config) validateUpdate() error {
	if c.Update.TTL <= 0 {
		return fmt.Errorf("update.ttl must be positive, got %s", c.Update.TTL)
	}
	if c.Update.Interval <= 0 {
		return fmt.Errorf("update.interval must be positive, got %s", c.Update.Interval)
	}
	if c.Update.CurrentSeasonUpdatesPerPeriod <= 0 {
		return fmt.Errorf("update.current_season_updates must be positive, got %d", c.Update.CurrentSeasonUpdatesPerPeriod)
	}
	if c.Update.HistoricalUpdatesPerPeriod <= 0 {
		return fmt.Errorf("update.historical_updates must be positive, got %d", c.Update.HistoricalUpdatesPerPeriod)
	}
	if c.Update.CharacterUpdatesPerTTL <= 0 {
		return fmt.Errorf("update.character_updates_per_ttl must be positive, got %d", c.Update.CharacterUpdatesPerTTL)
	}
	if c.Update.ClanMemberUpdatesPerTTL <= 0 {
		return fmt.Errorf("update.clan_member_updates_per_ttl must be positive, got %d", c.Update.ClanMemberUpdatesPerTTL)
	}
	if c.Update.RetentionTTL <= 0 {
		return fmt.Errorf("update.retention_ttl must be positive, got %s", c.Update.RetentionTTL)
	}
	if _, err := time.Parse("2006-01-02", c.Update.FullAnonymizeSince); err != nil {
		return fmt.Errorf("update.full_anonymize_since must be YYYY-MM-DD: %w", err)
	}
	return nil
}

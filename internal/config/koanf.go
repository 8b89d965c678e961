// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/laddersync/config.yaml",
	"/etc/laddersync/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces all environment overrides.
const envPrefix = "LADDERSYNC_"

// envMappings translates environment variable names (after the prefix is
// stripped) to koanf paths. Only listed variables are honored; this avoids
// guessing where underscores separate path segments from key names.
var envMappings = map[string]string{
	"LOG_LEVEL":                     "logging.level",
	"LOG_FORMAT":                    "logging.format",
	"SERVER_HOST":                   "server.host",
	"SERVER_PORT":                   "server.port",
	"UPSTREAM_REGIONS":              "upstream.regions",
	"UPSTREAM_TIMEOUT":              "upstream.timeout",
	"UPSTREAM_MAX_RETRIES":          "upstream.max_retries",
	"UPSTREAM_ERROR_RATE_THRESHOLD": "upstream.error_rate_threshold",
	"UPSTREAM_AUTO_FORCE_REGION":    "upstream.auto_force_region",
	"RATELIMIT_SHARED":              "ratelimit.shared",
	"RATELIMIT_PER_SECOND":          "ratelimit.per_second",
	"RATELIMIT_PER_HOUR":            "ratelimit.per_hour",
	"RATELIMIT_PRIORITY_SHARE":      "ratelimit.priority_share",
	"UPDATE_INTERVAL":               "update.interval",
	"UPDATE_TTL":                    "update.ttl",
	"NATS_ENABLED":                  "nats.enabled",
	"NATS_URL":                      "nats.url",
	"NATS_TOPIC":                    "nats.topic",
	"STORAGE_PATH":                  "storage.path",
	"STORAGE_IN_MEMORY":             "storage.in_memory",
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults (Default())
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		name := strings.TrimPrefix(key, envPrefix)
		if path, ok := envMappings[name]; ok {
			return path
		}
		return "" // unknown variables are ignored
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Region lists arrive from env as comma-separated strings.
	if v, ok := k.Get("upstream.regions").(string); ok {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("upstream.regions", parts); err != nil {
			return nil, fmt.Errorf("failed to normalize region list: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

// Package main is the entry point for the LadderSync server.
//
// LadderSync keeps a local store synchronized with the region-sharded
// StarCraft II ladder API. The server initializes components in the
// following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, config file,
//     LADDERSYNC_* environment variables)
//  2. Storage: BadgerDB variable store (cursors, watermarks) and the
//     embedded entity repositories
//  3. Events: update-completion publisher over NATS JetStream when
//     enabled, an in-process channel otherwise
//  4. Upstream client: region health monitor, redirect router, rate
//     budget, circuit breakers
//  5. Update orchestrator: single-flight incremental update runs
//  6. Admin HTTP server: operational knobs and Prometheus metrics
//
// All long-running components run under a suture supervisor tree with
// an ingest layer (update loop, region health maintenance) isolated
// from the API layer.
//
// The server handles graceful shutdown on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sc2-pulse/laddersync/internal/api"
	"github.com/sc2-pulse/laddersync/internal/client"
	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/events"
	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
	"github.com/sc2-pulse/laddersync/internal/region"
	"github.com/sc2-pulse/laddersync/internal/storage"
	"github.com/sc2-pulse/laddersync/internal/supervisor"
	"github.com/sc2-pulse/laddersync/internal/supervisor/services"
	appsync "github.com/sc2-pulse/laddersync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Strs("regions", cfg.Upstream.ActiveRegions).
		Bool("nats", cfg.NATS.Enabled).
		Str("storage", cfg.Storage.Path).
		Msg("Starting LadderSync")

	vars, err := storage.Open(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open variable store")
	}
	defer func() {
		if err := vars.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing variable store")
		}
	}()

	entities := storage.NewEntityStore(vars, storage.DefaultClanMemberInactiveAfter)
	defer func() {
		if err := entities.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing entity store")
		}
	}()

	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.NewNATSPublisher(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect event publisher")
		}
	} else {
		publisher, _ = events.NewChannelPublisher(cfg.NATS.Topic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	health := region.NewHealthMonitor(cfg.Upstream.ErrorRateThreshold)
	router := region.NewRouter(health, cfg.Regions(), cfg.Upstream.AutoForceDuration)
	router.SetAutoForceRegion(cfg.Upstream.AutoForceRegion)
	budget := ratelimit.NewBudget(ratelimit.Config{
		Shared:        cfg.RateLimit.Shared,
		PerSecond:     cfg.RateLimit.PerSecond,
		PerHour:       cfg.RateLimit.PerHour,
		PriorityShare: cfg.RateLimit.PriorityShare,
	})
	apiClient := client.New(cfg.Upstream, router, health, budget)

	manager := appsync.NewManager(
		cfg.Update,
		cfg.Regions(),
		apiClient,
		vars,
		entities.Seasons(),
		entities,
		entities,
		entities.Clans(),
		entities,
		publisher,
	)

	handlers := api.NewHandlers(apiClient, health, router, manager)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddIngestService(services.NewUpdateLoopService(manager, cfg.Update.Interval))
	tree.AddIngestService(services.NewHealthService(health, router,
		cfg.Upstream.HealthUpdateInterval, cfg.Upstream.RedirectEvalInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Admin HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}

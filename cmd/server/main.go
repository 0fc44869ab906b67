// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package main is the entry point for the Encore scoring engine.
//
// Encore computes trending rankings and personalized recommendations for
// a concert setlist voting product. It consumes vote events from NATS
// JetStream, tracks per-item vote velocity over a sliding window, and
// serves cached trending lists and recommendations over HTTP.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml, and
//     ENCORE_* environment variables (Koanf v2)
//  2. Cache: tiered in-memory cache, optionally backed by BadgerDB
//  3. Vote pipeline: NATS JetStream subscriber feeding the debounced
//     vote aggregator (embedded server in standalone mode)
//  4. Scoring: trending ranker and recommendation engine, both reading
//     candidates and profiles from the setlist datastore service
//  5. HTTP server: REST API plus Prometheus metrics
//
// All long-running components run under a Suture supervision tree so a
// crash-looping consumer never takes the API down with it.
//
// # Configuration
//
// Settings load with the highest priority last:
//   - Built-in defaults
//   - Config file (config.yaml, or ENCORE_CONFIG_PATH)
//   - Environment variables (ENCORE_SERVER_PORT, ENCORE_NATS_URL, ...)
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server drains
// in-flight requests, the consumer stops pulling messages, pending
// debounce timers are dropped, and the embedded NATS server (if any)
// shuts down last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encorehq/encore/internal/api"
	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/config"
	"github.com/encorehq/encore/internal/logging"
	"github.com/encorehq/encore/internal/provider"
	"github.com/encorehq/encore/internal/recommend"
	"github.com/encorehq/encore/internal/scoring"
	"github.com/encorehq/encore/internal/supervisor"
	"github.com/encorehq/encore/internal/trending"
	"github.com/encorehq/encore/internal/votes"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("provider_url", cfg.Provider.URL).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("badger_enabled", cfg.Cache.BadgerEnabled).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache layer, optionally backed by a persistent Badger tier so warm
	// trending lists survive restarts.
	var tier cache.Tier
	if cfg.Cache.BadgerEnabled {
		bt, err := cache.NewBadgerTier(cfg.Cache.BadgerPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Cache.BadgerPath).Msg("Failed to open Badger cache tier")
		}
		defer func() {
			if err := bt.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Badger tier")
			}
		}()
		tier = bt
		logging.Info().Str("path", cfg.Cache.BadgerPath).Msg("Badger cache tier enabled")
	}

	layer := cache.New(cache.Options{
		DefaultTTL: cfg.Cache.DefaultTTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Tier:       tier,
		Logger:     logging.Component("cache"),
	})

	// Vote aggregator: tracks velocity windows and schedules debounced
	// invalidations against the cache layer.
	aggregator := votes.NewAggregator(votes.Config{
		Window:   cfg.Votes.Window,
		Buckets:  cfg.Votes.Buckets,
		Debounce: cfg.Votes.Debounce,
	}, layer, logging.Component("votes"))
	defer aggregator.Close()

	// Datastore client with circuit breaker.
	source := provider.NewClient(provider.Config{
		BaseURL:            cfg.Provider.URL,
		APIKey:             cfg.Provider.APIKey,
		Timeout:            cfg.Provider.Timeout,
		BreakerMaxFailures: cfg.Provider.BreakerMaxFailures,
		BreakerTimeout:     cfg.Provider.BreakerTimeout,
	}, logging.Component("provider"))

	ranker := trending.NewRanker(trending.Config{
		CacheTTL:     cfg.Trending.CacheTTL,
		StaleTTL:     cfg.Trending.StaleTTL,
		MaxLimit:     cfg.Trending.MaxLimit,
		DefaultLimit: cfg.Trending.DefaultLimit,
		Weights: scoring.Weights{
			VoteActivity: cfg.Trending.VoteActivity,
			Velocity:     cfg.Trending.Velocity,
			Popularity:   cfg.Trending.Popularity,
			Urgency:      cfg.Trending.Urgency,
		},
		Boost: scoring.BoostRule{
			Factor:     cfg.Trending.BoostFactor,
			WithinDays: cfg.Trending.BoostWindowDays,
		},
	}, source, layer, aggregator, logging.Component("trending"))

	engine := recommend.NewEngine(recommend.Config{
		CacheTTL:            cfg.Recommend.CacheTTL,
		StaleTTL:            cfg.Recommend.StaleTTL,
		MaxRecommendations:  cfg.Recommend.MaxRecommendations,
		Neighbors:           cfg.Recommend.Neighbors,
		SimilarityThreshold: cfg.Recommend.SimilarityThreshold,
		DiversityFactor:     cfg.Recommend.DiversityFactor,
		ConfidenceThreshold: cfg.Recommend.ConfidenceThreshold,
		EngagementWorkers:   cfg.Recommend.EngagementWorkers,
	}, source, layer, logging.Component("recommend"))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Vote event pipeline (optional). Standalone deployments run an
	// embedded JetStream server; clustered ones point NATS.URL at shared
	// infrastructure.
	if cfg.NATS.Enabled {
		natsCfg := votes.NATSConfig{
			URL:              cfg.NATS.URL,
			Embedded:         cfg.NATS.EmbeddedServer,
			StoreDir:         cfg.NATS.StoreDir,
			DurableName:      cfg.NATS.DurableName,
			QueueGroup:       cfg.NATS.QueueGroup,
			SubscribersCount: cfg.NATS.SubscribersCount,
			AckWaitTimeout:   cfg.NATS.AckWaitTimeout,
		}

		if natsCfg.Embedded {
			embedded, err := votes.NewEmbeddedServer(cfg.NATS.StoreDir)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := embedded.Shutdown(shutdownCtx); err != nil {
					logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
				}
			}()
			natsCfg.URL = embedded.ClientURL()
			logging.Info().Str("url", natsCfg.URL).Msg("Embedded NATS server started")
		}

		subscriber, err := votes.NewNATSSubscriber(natsCfg, votes.NewWatermillLogger(logging.Component("nats")))
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create NATS subscriber")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS subscriber")
			}
		}()

		consumer := votes.NewConsumer(subscriber, cfg.NATS.Topic, aggregator, logging.Component("consumer"))
		tree.AddEventService(consumer)
		logging.Info().Str("topic", cfg.NATS.Topic).Msg("Vote consumer added to supervisor tree")
	} else {
		logging.Warn().Msg("NATS disabled - trending velocity will rely on datastore snapshots only")
	}

	tree.AddMaintenanceService(cache.NewJanitor(layer, cfg.Cache.JanitorInterval, logging.Component("janitor")))

	server := api.NewServer(api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Timeout:         cfg.Server.Timeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	}, ranker, engine, layer, logging.Component("api"))
	tree.AddAPIService(server)
	logging.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("HTTP server added to supervisor tree")

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

	logging.Info().Msg("Engine stopped gracefully")
}

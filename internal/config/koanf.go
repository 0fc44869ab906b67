// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

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

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/encore/config.yaml",
	"/etc/encore/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "ENCORE_CONFIG_PATH"

// envPrefix namespaces all engine environment variables.
const envPrefix = "ENCORE_"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: ENCORE_* overrides (highest priority)
//
// Precedence: ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// ENCORE_SERVER_PORT -> server.port, ENCORE_CACHE_DEFAULT_TTL ->
	// cache.default_ttl, and so on through the explicit mapping table.
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
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

// findConfigFile searches for a config file, returning the first found
// path or empty string.
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

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive through env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for
// known slice fields. YAML values arrive as slices already and are left
// alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps ENCORE_* environment variable names to koanf
// config paths. Unmapped keys are dropped so unrelated environment
// variables cannot pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Server mappings
		"server_host":              "server.host",
		"server_port":              "server.port",
		"server_timeout":           "server.timeout",
		"server_shutdown_timeout":  "server.shutdown_timeout",
		"server_cors_origins":      "server.cors_origins",
		"server_rate_limit_reqs":   "server.rate_limit_reqs",
		"server_rate_limit_window": "server.rate_limit_window",

		// Provider mappings
		"provider_url":                  "provider.url",
		"provider_api_key":              "provider.api_key",
		"provider_timeout":              "provider.timeout",
		"provider_breaker_max_failures": "provider.breaker_max_failures",
		"provider_breaker_timeout":      "provider.breaker_timeout",

		// NATS mappings
		"nats_enabled":      "nats.enabled",
		"nats_url":          "nats.url",
		"nats_embedded":     "nats.embedded_server",
		"nats_store_dir":    "nats.store_dir",
		"nats_topic":        "nats.topic",
		"nats_durable_name": "nats.durable_name",
		"nats_queue_group":  "nats.queue_group",
		"nats_subscribers":  "nats.subscribers_count",
		"nats_ack_wait":     "nats.ack_wait_timeout",

		// Cache mappings
		"cache_default_ttl":      "cache.default_ttl",
		"cache_max_entries":      "cache.max_entries",
		"cache_janitor_interval": "cache.janitor_interval",
		"cache_badger_enabled":   "cache.badger_enabled",
		"cache_badger_path":      "cache.badger_path",

		// Vote aggregation mappings
		"votes_window":   "votes.window",
		"votes_buckets":  "votes.buckets",
		"votes_debounce": "votes.debounce",

		// Trending mappings
		"trending_cache_ttl":            "trending.cache_ttl",
		"trending_stale_ttl":            "trending.stale_ttl",
		"trending_max_limit":            "trending.max_limit",
		"trending_default_limit":        "trending.default_limit",
		"trending_vote_activity_weight": "trending.vote_activity_weight",
		"trending_velocity_weight":      "trending.velocity_weight",
		"trending_popularity_weight":    "trending.popularity_weight",
		"trending_urgency_weight":       "trending.urgency_weight",
		"trending_boost_factor":         "trending.boost_factor",
		"trending_boost_window_days":    "trending.boost_window_days",

		// Recommendation mappings
		"recommend_cache_ttl":            "recommend.cache_ttl",
		"recommend_max":                  "recommend.max_recommendations",
		"recommend_neighbors":            "recommend.neighbors",
		"recommend_similarity_threshold": "recommend.similarity_threshold",
		"recommend_diversity_factor":     "recommend.diversity_factor",
		"recommend_confidence_threshold": "recommend.confidence_threshold",
		"recommend_engagement_workers":   "recommend.engagement_workers",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package config

import (
	"time"
)

// Config is the root configuration for the scoring engine.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Provider  ProviderConfig  `koanf:"provider"`
	NATS      NATSConfig      `koanf:"nats"`
	Cache     CacheConfig     `koanf:"cache"`
	Votes     VotesConfig     `koanf:"votes"`
	Trending  TrendingConfig  `koanf:"trending"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// ProviderConfig holds the connection settings for the upstream setlist
// datastore service that owns shows, artists, votes and user profiles.
type ProviderConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"min=100ms"`

	// Circuit breaker tuning.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// NATSConfig holds the vote event subscription settings.
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	Topic            string        `koanf:"topic"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
}

// CacheConfig holds cache layer settings.
type CacheConfig struct {
	DefaultTTL      time.Duration `koanf:"default_ttl" validate:"min=1s"`
	MaxEntries      int           `koanf:"max_entries" validate:"min=0"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// Badger persistent tier; empty path disables it.
	BadgerEnabled bool   `koanf:"badger_enabled"`
	BadgerPath    string `koanf:"badger_path"`
}

// VotesConfig holds vote aggregation settings.
type VotesConfig struct {
	Window   time.Duration `koanf:"window" validate:"min=1m"`
	Buckets  int           `koanf:"buckets" validate:"min=1"`
	Debounce time.Duration `koanf:"debounce" validate:"min=100ms"`
}

// TrendingConfig holds trending ranker settings.
type TrendingConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"min=1s"`
	StaleTTL        time.Duration `koanf:"stale_ttl"`
	MaxLimit        int           `koanf:"max_limit" validate:"min=1"`
	DefaultLimit    int           `koanf:"default_limit" validate:"min=1"`
	VoteActivity    float64       `koanf:"vote_activity_weight" validate:"min=0"`
	Velocity        float64       `koanf:"velocity_weight" validate:"min=0"`
	Popularity      float64       `koanf:"popularity_weight" validate:"min=0"`
	Urgency         float64       `koanf:"urgency_weight" validate:"min=0"`
	BoostFactor     float64       `koanf:"boost_factor" validate:"min=1"`
	BoostWindowDays int           `koanf:"boost_window_days" validate:"min=0"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	CacheTTL            time.Duration `koanf:"cache_ttl" validate:"min=1s"`
	StaleTTL            time.Duration `koanf:"stale_ttl"`
	MaxRecommendations  int           `koanf:"max_recommendations" validate:"min=1"`
	Neighbors           int           `koanf:"neighbors" validate:"min=1"`
	SimilarityThreshold float64       `koanf:"similarity_threshold" validate:"min=0,max=1"`
	DiversityFactor     float64       `koanf:"diversity_factor" validate:"min=0,max=1"`
	ConfidenceThreshold float64       `koanf:"confidence_threshold" validate:"min=0,max=1"`
	EngagementWorkers   int           `koanf:"engagement_workers" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Provider: ProviderConfig{
			URL:                "http://127.0.0.1:8080",
			APIKey:             "",
			Timeout:            5 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:          true,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			Topic:            "votes.cast",
			DurableName:      "vote-aggregator",
			QueueGroup:       "aggregators",
			SubscribersCount: 4,
			AckWaitTimeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:      5 * time.Minute,
			MaxEntries:      10000,
			JanitorInterval: 5 * time.Minute,
			BadgerEnabled:   false,
			BadgerPath:      "/data/cache",
		},
		Votes: VotesConfig{
			Window:   7 * 24 * time.Hour,
			Buckets:  84,
			Debounce: 2 * time.Second,
		},
		Trending: TrendingConfig{
			CacheTTL:        5 * time.Minute,
			StaleTTL:        time.Hour,
			MaxLimit:        50,
			DefaultLimit:    20,
			VoteActivity:    0.4,
			Velocity:        0.3,
			Popularity:      0.2,
			Urgency:         0.1,
			BoostFactor:     1.25,
			BoostWindowDays: 14,
		},
		Recommend: RecommendConfig{
			CacheTTL:            10 * time.Minute,
			StaleTTL:            time.Hour,
			MaxRecommendations:  20,
			Neighbors:           10,
			SimilarityThreshold: 0.6,
			DiversityFactor:     0.3,
			ConfidenceThreshold: 0.7,
			EngagementWorkers:   8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if cfg.Votes.Debounce != 2*time.Second {
		t.Errorf("Votes.Debounce = %v, want 2s", cfg.Votes.Debounce)
	}
	if cfg.Trending.MaxLimit != 50 {
		t.Errorf("Trending.MaxLimit = %d, want 50", cfg.Trending.MaxLimit)
	}
	if got := cfg.Trending.VoteActivity + cfg.Trending.Velocity + cfg.Trending.Popularity + cfg.Trending.Urgency; got != 1.0 {
		t.Errorf("trending weights sum = %v, want 1.0", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ENCORE_SERVER_PORT", "9000")
	t.Setenv("ENCORE_LOG_LEVEL", "debug")
	t.Setenv("ENCORE_VOTES_DEBOUNCE", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want \"debug\"", cfg.Logging.Level)
	}
	if cfg.Votes.Debounce != 500*time.Millisecond {
		t.Errorf("Votes.Debounce = %v, want 500ms", cfg.Votes.Debounce)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9100
trending:
  default_limit: 10
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Trending.DefaultLimit != 10 {
		t.Errorf("Trending.DefaultLimit = %d, want 10", cfg.Trending.DefaultLimit)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want \"warn\"", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Cache.DefaultTTL = %v, want 5m", cfg.Cache.DefaultTTL)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("ENCORE_SERVER_PORT", "9200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want env override 9200", cfg.Server.Port)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("ENCORE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"default limit above max", func(c *Config) { c.Trending.DefaultLimit = 99 }},
		{"zero weights", func(c *Config) {
			c.Trending.VoteActivity = 0
			c.Trending.Velocity = 0
			c.Trending.Popularity = 0
			c.Trending.Urgency = 0
		}},
		{"external NATS without URL", func(c *Config) {
			c.NATS.EmbeddedServer = false
			c.NATS.URL = ""
		}},
		{"badger without path", func(c *Config) {
			c.Cache.BadgerEnabled = true
			c.Cache.BadgerPath = ""
		}},
		{"diversity above one", func(c *Config) { c.Recommend.DiversityFactor = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	if got := envTransformFunc("ENCORE_TOTALLY_UNKNOWN"); got != "" {
		t.Errorf("envTransformFunc(unknown) = %q, want empty", got)
	}
	if got := envTransformFunc("ENCORE_SERVER_PORT"); got != "server.port" {
		t.Errorf("envTransformFunc(ENCORE_SERVER_PORT) = %q, want server.port", got)
	}
}

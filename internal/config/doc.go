// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package config loads and validates engine configuration from layered
// sources with clear precedence: environment variables override an
// optional YAML config file, which overrides built-in defaults.
//
// All environment variables carry the ENCORE_ prefix and map onto the
// nested structure through an explicit table, e.g. ENCORE_SERVER_PORT
// sets server.port and ENCORE_TRENDING_CACHE_TTL sets
// trending.cache_ttl. Unknown variables are ignored.
//
// Validation combines struct-tag range checks with cross-field rules
// (score weights must sum positive, the default trending limit may not
// exceed the maximum, a disabled embedded NATS server requires an
// explicit URL).
package config

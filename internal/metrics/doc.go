// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package metrics exposes the engine's Prometheus collectors: cache
// efficiency, vote pipeline throughput, trending/recommendation compute
// latency, upstream datastore health and API request metrics. All
// collectors register through promauto at package init and are served
// on /metrics by the API server.
package metrics

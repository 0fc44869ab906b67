// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package api exposes the scoring engine over HTTP.
//
// The router serves trending lists, per-user recommendations, cache
// statistics, an admin invalidation endpoint, and Prometheus metrics.
// Requests under /api/v1 are rate limited per client IP; trending
// failures with no stale fallback map to 503 so upstream callers can
// distinguish a degraded datastore from a bad request.
package api

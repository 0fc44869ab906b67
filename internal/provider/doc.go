// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package provider is the read-only client for the setlist datastore
// service, the system of record for shows, artists, votes, user feature
// profiles and engagement history. The engine never persists this data;
// it fetches candidate snapshots per computation and caches derived
// scores only.
//
// Every call goes through a circuit breaker so a slow or failing
// datastore degrades into fast ErrDataUnavailable errors that callers
// answer from stale cache instead of piling up timeouts.
package provider

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package trending ranks shows and artists by a weighted blend of vote
// activity, vote velocity, artist popularity and event urgency, with a
// multiplicative boost for verified artists whose show is imminent.
//
// Lists are cached per (kind, timeframe, limit) and tagged for
// vote-driven invalidation; concurrent misses for the same list share a
// single computation. Each successful computation also refreshes an
// untagged stale copy with a longer TTL, which is served when the
// upstream datastore is unavailable.
package trending

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package cache implements the engine's tiered key/value cache with
// per-entry TTL, tag-based group invalidation, and a single-flight
// compute-on-miss contract.
//
// The first tier is an in-memory map guarded by a RWMutex; the optional
// second tier is a BadgerDB store that keeps serialized entries across
// restarts. Entries past their TTL are treated as absent by readers (lazy
// expiry) and physically removed by the background Janitor.
//
// The cache is the only stateful component of the engine; its contents are
// always a pure function of (derivable value, staleness window).
package cache

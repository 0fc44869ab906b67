// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package models defines the shared domain types for the trending and
// recommendation engine: candidate items, user feature profiles, vote
// signals, and recommendation results.
//
// All types here are plain data snapshots. Scores and recommendations are
// always derivable from CandidateItem + UserFeatureProfile; the engine
// holds no hidden durable state beyond the cache.
package models

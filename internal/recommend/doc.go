// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package recommend builds personalized show and artist recommendations.
//
// The pipeline has four stages: a content stage scoring candidates by
// genre-preference overlap, a collaborative stage scoring them by how
// many of the user's nearest behavioral neighbors engaged with them, a
// confidence-weighted merge, and a greedy diversity re-rank that
// discounts candidates whose kind already dominates the selection.
//
// Users without a feature profile get globally popular items at a fixed
// 0.5 confidence. A failed collaborative stage degrades the response to
// content-only rather than failing it; each result reports its stage
// outcomes so callers can tell a full answer from a degraded one.
package recommend

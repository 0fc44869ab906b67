// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

// Package scoring implements the pure scoring functions of the engine:
// the weighted trending score with time decay, the special-event boost,
// the content match score against user genre preferences, and the
// cosine-similarity nearest-neighbor search used by collaborative
// filtering.
//
// Everything in this package is stateless and deterministic.
package scoring

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package models

import "errors"

// Sentinel errors classifying scoring engine failures. Callers match
// with errors.Is to pick a response: serve stale data, fall back to a
// degraded pipeline, or surface the failure.
var (
	// ErrDataUnavailable means the upstream datastore could not supply
	// the inputs for a computation (network failure, open breaker,
	// non-2xx response).
	ErrDataUnavailable = errors.New("source data unavailable")

	// ErrProfileMissing means no feature profile exists for the user,
	// triggering the cold-start path.
	ErrProfileMissing = errors.New("user feature profile missing")

	// ErrComputeFailure means a scoring computation produced an
	// unusable result (non-finite score, impossible input).
	ErrComputeFailure = errors.New("score computation failed")

	// ErrCacheCorruption means a cached entry could not be decoded and
	// was discarded; the value was recomputed from source.
	ErrCacheCorruption = errors.New("cache entry corrupted")
)

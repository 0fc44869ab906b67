// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Janitor periodically evicts expired entries from the in-memory tier and
// drives Badger value-log GC on the persistent tier. It implements
// suture.Service and is supervised alongside the vote consumer.
type Janitor struct {
	layer    *Layer
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor creates a janitor for the given layer. An interval <= 0
// defaults to 5 minutes.
func NewJanitor(layer *Layer, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{
		layer:    layer,
		interval: interval,
		logger:   logger,
	}
}

// Serve runs the eviction loop until the context is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evicted := j.layer.evictExpired()
			if evicted > 0 {
				j.logger.Debug().Int("evicted", evicted).Msg("expired cache entries removed")
			}
			if bt, ok := j.layer.tier.(*BadgerTier); ok && bt != nil {
				bt.RunGC()
			}
		}
	}
}

func (j *Janitor) String() string { return "cache-janitor" }

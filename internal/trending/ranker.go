// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package trending

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/provider"
	"github.com/encorehq/encore/internal/scoring"
)

// Tag is the cache tag shared by all trending entries. Kind-scoped
// entries additionally carry KindTag(kind).
const Tag = "trending"

// KindTag returns the cache tag scoping trending entries to one kind.
func KindTag(kind models.Kind) string {
	return "trending:" + string(kind)
}

// stalePrefix marks the untagged long-TTL fallback copies that survive
// vote-driven invalidation and are served when the datastore is down.
const stalePrefix = "stale:"

// RankedItem is one row of a trending list.
type RankedItem struct {
	models.CandidateItem

	// Score is the final trending score, boost included.
	Score float64 `json:"score"`

	// Boosted marks items whose score received the special-event boost.
	Boosted bool `json:"boosted"`
}

// Enricher overlays live vote-window state onto candidate snapshots.
// Implemented by *votes.Aggregator.
type Enricher interface {
	Enrich(item *models.CandidateItem)
}

// Config holds ranker tuning parameters.
type Config struct {
	CacheTTL     time.Duration
	StaleTTL     time.Duration
	MaxLimit     int
	DefaultLimit int
	Weights      scoring.Weights
	Boost        scoring.BoostRule
}

// Ranker computes cached trending lists of shows and artists.
type Ranker struct {
	cfg      Config
	source   provider.Source
	cache    *cache.Layer
	enricher Enricher
	logger   zerolog.Logger
}

// NewRanker creates a trending ranker. enricher may be nil when no live
// vote state is available.
func NewRanker(cfg Config, source provider.Source, layer *cache.Layer, enricher Enricher, logger zerolog.Logger) *Ranker {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = time.Hour
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.Weights == (scoring.Weights{}) {
		cfg.Weights = scoring.DefaultWeights()
	}
	if cfg.Boost == (scoring.BoostRule{}) {
		cfg.Boost = scoring.DefaultBoostRule()
	}

	return &Ranker{
		cfg:      cfg,
		source:   source,
		cache:    layer,
		enricher: enricher,
		logger:   logger,
	}
}

// Trending returns the top trending items of a kind over a timeframe.
//
// Results come from cache when fresh; otherwise one caller recomputes
// while concurrent requests for the same list share the result. When the
// datastore is unavailable, a previously computed list is served from
// the stale fallback copy instead of failing the request.
func (r *Ranker) Trending(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]RankedItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if !timeframe.Valid() {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	if limit > r.cfg.MaxLimit {
		limit = r.cfg.MaxLimit
	}

	key := fmt.Sprintf("trending:%s:%s:%d", kind, timeframe, limit)
	tags := []string{Tag, KindTag(kind)}

	ranked, err := cache.GetOrCompute(ctx, r.cache, key, r.cfg.CacheTTL, tags,
		func(ctx context.Context) ([]RankedItem, error) {
			return r.compute(ctx, kind, timeframe, limit, key)
		})
	if err == nil {
		return ranked, nil
	}

	if errors.Is(err, models.ErrDataUnavailable) {
		if stale, ok := r.staleCopy(key); ok {
			metrics.TrendingStaleServed.Inc()
			r.logger.Warn().
				Str("key", key).
				Msg("datastore unavailable, serving stale trending list")
			return stale, nil
		}
	}
	return nil, err
}

// InvalidateAll drops every cached trending list.
func (r *Ranker) InvalidateAll() int {
	return r.cache.InvalidateByTags(Tag)
}

// InvalidateKind drops cached trending lists for one kind.
func (r *Ranker) InvalidateKind(kind models.Kind) int {
	return r.cache.InvalidateByTags(KindTag(kind))
}

// compute builds a trending list from fresh datastore candidates.
func (r *Ranker) compute(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int, key string) ([]RankedItem, error) {
	start := time.Now()

	// Over-fetch so boosting can promote items from below the cut line.
	candidates, err := r.source.Candidates(ctx, kind, timeframe, limit*2)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	ranked := make([]RankedItem, 0, len(candidates))
	for i := range candidates {
		item := candidates[i]
		if r.enricher != nil {
			r.enricher.Enrich(&item)
		}

		score := scoring.TrendingScore(item, r.cfg.Weights)
		if !scoring.ValidScore(score) {
			metrics.TrendingItemsSkipped.Inc()
			r.logger.Error().
				Err(fmt.Errorf("%w: non-finite score %v", models.ErrComputeFailure, score)).
				Str("item_id", item.ID).
				Msg("skipping candidate with non-finite score")
			continue
		}

		ranked = append(ranked, RankedItem{CandidateItem: item, Score: score})
	}

	// Rank on base scores first so the boost reorders an already
	// deterministic list; ties go to the newer entry.
	sortRanked(ranked)

	for i := range ranked {
		if r.cfg.Boost.Applies(ranked[i].CandidateItem) {
			ranked[i].Score = scoring.SpecialEventBoost(ranked[i].CandidateItem, ranked[i].Score, r.cfg.Boost)
			ranked[i].Boosted = true
		}
	}
	sortRanked(ranked)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	metrics.RecordTrendingCompute(string(kind), string(timeframe), time.Since(start))

	// Refresh the untagged fallback copy. It outlives vote-driven
	// invalidation so an upstream outage degrades to stale data, not
	// errors.
	r.cache.Set(stalePrefix+key, ranked, r.cfg.StaleTTL, nil, cache.PriorityHigh)

	return ranked, nil
}

// staleCopy reads the long-TTL fallback list for a key.
func (r *Ranker) staleCopy(key string) ([]RankedItem, bool) {
	v, ok := r.cache.Get(stalePrefix + key)
	if !ok {
		return nil, false
	}
	ranked, ok := v.([]RankedItem)
	return ranked, ok
}

// sortRanked orders by score descending, breaking ties by newer
// CreatedAt, then ascending ID for full determinism.
func sortRanked(ranked []RankedItem) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/provider"
	"github.com/encorehq/encore/internal/scoring"
)

// Tag is the cache tag shared by all recommendation entries.
const Tag = "recommendations"

// UserTag returns the cache tag scoping entries to one user.
func UserTag(userID string) string {
	return "user:" + userID
}

// stalePrefix marks the untagged long-TTL fallback copies that survive
// profile-driven invalidation and are served when the datastore is down.
const stalePrefix = "stale:"

// StageStatus reports how a pipeline stage ended.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// Result is a full recommendation response for one user.
type Result struct {
	// UserID is the requesting user.
	UserID string `json:"user_id"`

	// Recommendations is the final ranked, diversified list.
	Recommendations []models.Recommendation `json:"recommendations"`

	// ColdStart marks results built from global popularity because the
	// user has no feature profile yet.
	ColdStart bool `json:"cold_start"`

	// Degraded marks results where a stage failed and the remaining
	// stages carried the response.
	Degraded bool `json:"degraded"`

	// Stages reports the outcome of each pipeline stage.
	Stages map[string]StageStatus `json:"stages"`

	// GeneratedAt is when the result was computed (not served).
	GeneratedAt time.Time `json:"generated_at"`
}

// Config holds recommendation engine tuning parameters.
type Config struct {
	CacheTTL            time.Duration
	StaleTTL            time.Duration
	MaxRecommendations  int
	Neighbors           int
	SimilarityThreshold float64
	DiversityFactor     float64
	ConfidenceThreshold float64
	EngagementWorkers   int
}

// Engine produces personalized show and artist recommendations by
// blending content-based and collaborative signals, with a popularity
// fallback for profile-less users.
type Engine struct {
	cfg    Config
	source provider.Source
	cache  *cache.Layer
	logger zerolog.Logger
	clock  func() time.Time
}

// NewEngine creates a recommendation engine.
func NewEngine(cfg Config, source provider.Source, layer *cache.Layer, logger zerolog.Logger) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = time.Hour
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 20
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = 10
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.6
	}
	if cfg.DiversityFactor <= 0 {
		cfg.DiversityFactor = 0.3
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.EngagementWorkers <= 0 {
		cfg.EngagementWorkers = 8
	}

	return &Engine{
		cfg:    cfg,
		source: source,
		cache:  layer,
		logger: logger,
		clock:  time.Now,
	}
}

// Recommend returns up to limit recommendations for a user. Results are
// cached per (user, limit); concurrent misses share one computation.
// When the datastore is unavailable, a previously computed result is
// served from the stale fallback copy instead of failing the request.
func (e *Engine) Recommend(ctx context.Context, userID string, limit int) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user id")
	}
	if limit <= 0 || limit > e.cfg.MaxRecommendations {
		limit = e.cfg.MaxRecommendations
	}

	key := fmt.Sprintf("recommendations:%s:%d", userID, limit)
	tags := []string{Tag, UserTag(userID)}

	result, err := cache.GetOrCompute(ctx, e.cache, key, e.cfg.CacheTTL, tags,
		func(ctx context.Context) (*Result, error) {
			return e.compute(ctx, key, userID, limit)
		})
	if err == nil {
		return result, nil
	}

	if errors.Is(err, models.ErrDataUnavailable) {
		if stale, ok := e.staleCopy(key); ok {
			metrics.RecommendationStaleServed.Inc()
			e.logger.Warn().
				Str("key", key).
				Str("user_id", userID).
				Msg("datastore unavailable, serving stale recommendations")
			return stale, nil
		}
	}
	return nil, err
}

// InvalidateUser drops cached recommendations for one user, e.g. after
// their feature profile is rebuilt.
func (e *Engine) InvalidateUser(userID string) int {
	return e.cache.InvalidateByTags(UserTag(userID))
}

// compute runs the full pipeline: profile fetch, content and
// collaborative stages, confidence-weighted merge, diversity re-rank.
func (e *Engine) compute(ctx context.Context, key, userID string, limit int) (*Result, error) {
	start := time.Now()

	profile, err := e.source.UserProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrProfileMissing) {
			return e.coldStart(ctx, key, userID, limit, start)
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	// Both stages draw candidates from the same popularity pool so the
	// merge step compares like with like.
	pool, err := e.source.Popular(ctx, limit*5)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate pool: %w", err)
	}

	result := &Result{
		UserID:      userID,
		Stages:      make(map[string]StageStatus, 2),
		GeneratedAt: e.clock(),
	}

	content := e.contentStage(profile, pool)
	result.Stages["content"] = StageOK

	collaborative, collabErr := e.collaborativeStage(ctx, profile, pool)
	if collabErr != nil {
		metrics.RecommendationStageFailures.WithLabelValues("collaborative").Inc()
		e.logger.Warn().
			Err(collabErr).
			Str("user_id", userID).
			Msg("collaborative stage failed, serving content-only recommendations")
		result.Stages["collaborative"] = StageFailed
		result.Degraded = true
	} else if collaborative == nil {
		// No behavior vector or no sufficiently similar neighbors.
		result.Stages["collaborative"] = StageSkipped
	} else {
		result.Stages["collaborative"] = StageOK
	}

	merged := e.merge(profile, content, collaborative)
	if len(merged) == 0 && result.Degraded {
		// Nothing personal to offer: fall back to popularity rather
		// than an empty page.
		metrics.RecordRecommendation("failed", time.Since(start))
		return e.coldStart(ctx, key, userID, limit, start)
	}

	result.Recommendations = e.diversify(merged, limit)

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	metrics.RecordRecommendation(outcome, time.Since(start))

	e.storeStale(key, result)

	return result, nil
}

// coldStart serves globally popular items at fixed 0.5 confidence for
// users without a feature profile.
func (e *Engine) coldStart(ctx context.Context, key, userID string, limit int, start time.Time) (*Result, error) {
	popular, err := e.source.Popular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("cold-start popular fetch: %w", err)
	}

	recs := make([]models.Recommendation, 0, len(popular))
	for i, item := range popular {
		if i >= limit {
			break
		}
		recs = append(recs, models.Recommendation{
			ItemID:     item.ID,
			Kind:       item.Kind,
			Score:      popularityScore(i, len(popular)),
			Confidence: 0.5,
			Reason:     "popular with the community right now",
			Source:     models.SourcePopular,
		})
	}

	metrics.RecordRecommendation("cold_start", time.Since(start))

	result := &Result{
		UserID:          userID,
		Recommendations: recs,
		ColdStart:       true,
		Stages: map[string]StageStatus{
			"content":       StageSkipped,
			"collaborative": StageSkipped,
		},
		GeneratedAt: e.clock(),
	}

	e.storeStale(key, result)

	return result, nil
}

// storeStale refreshes the untagged fallback copy. It outlives vote and
// profile driven invalidation so an upstream outage degrades to stale
// data, not errors.
func (e *Engine) storeStale(key string, result *Result) {
	e.cache.Set(stalePrefix+key, result, e.cfg.StaleTTL, nil, cache.PriorityHigh)
}

// staleCopy reads the long-TTL fallback result for a key.
func (e *Engine) staleCopy(key string) (*Result, bool) {
	v, ok := e.cache.Get(stalePrefix + key)
	if !ok {
		return nil, false
	}
	result, ok := v.(*Result)
	return result, ok
}

// scored is an intermediate stage output before merging.
type scored struct {
	item  models.CandidateItem
	score float64
}

// contentStage scores pool items by genre-preference overlap. Items with
// no overlap are dropped.
func (e *Engine) contentStage(profile *models.UserFeatureProfile, pool []models.CandidateItem) map[string]scored {
	out := make(map[string]scored)
	for _, item := range pool {
		s := scoring.ContentMatchScore(item, profile.GenreWeights)
		if s <= 0 {
			continue
		}
		out[itemKey(item)] = scored{item: item, score: s}
	}
	return out
}

// collaborativeStage scores pool items by the fraction of the user's
// nearest behavioral neighbors who engaged with them. Neighbor
// engagement histories are fetched concurrently with a bounded worker
// pool; individual fetch failures drop that neighbor rather than the
// stage, but losing every neighbor fails the stage.
func (e *Engine) collaborativeStage(ctx context.Context, profile *models.UserFeatureProfile, pool []models.CandidateItem) (map[string]scored, error) {
	if len(profile.BehaviorVector) == 0 {
		return nil, nil
	}

	vectors, err := e.source.BehaviorVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch behavior vectors: %w", err)
	}

	// Exclude the user's own vector from the neighbor pool.
	candidates := make([]scoring.VectorEntry, 0, len(vectors))
	for _, v := range vectors {
		if v.ID == profile.UserID {
			continue
		}
		candidates = append(candidates, v)
	}

	neighbors := scoring.NearestNeighbors(profile.BehaviorVector, candidates, e.cfg.Neighbors, e.cfg.SimilarityThreshold)
	if len(neighbors) == 0 {
		return nil, nil
	}

	engagements := make([][]string, len(neighbors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.EngagementWorkers)

	for i, n := range neighbors {
		g.Go(func() error {
			items, err := e.source.Engagements(gctx, n.ID)
			if err != nil {
				e.logger.Debug().
					Err(err).
					Str("neighbor_id", n.ID).
					Msg("dropping neighbor with unavailable engagements")
				return nil
			}
			engagements[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	reachable := 0
	for _, items := range engagements {
		if items == nil {
			continue
		}
		reachable++
		seen := make(map[string]bool, len(items))
		for _, id := range items {
			if !seen[id] {
				seen[id] = true
				counts[id]++
			}
		}
	}
	if reachable == 0 {
		return nil, fmt.Errorf("no neighbor engagements reachable: %w", models.ErrDataUnavailable)
	}

	byID := make(map[string]models.CandidateItem, len(pool))
	for _, item := range pool {
		byID[item.ID] = item
	}

	out := make(map[string]scored)
	for id, c := range counts {
		item, ok := byID[id]
		if !ok {
			continue
		}
		out[itemKey(item)] = scored{
			item:  item,
			score: float64(c) / float64(reachable),
		}
	}
	return out, nil
}

// merge weights each stage's scores by profile confidence and dedupes
// on (kind, id), keeping the highest-weighted occurrence of each item.
// A high-confidence profile favors the content signal; an uncertain
// one leans on the crowd.
func (e *Engine) merge(profile *models.UserFeatureProfile, content, collaborative map[string]scored) []models.Recommendation {
	wContent, wCollab := 0.4, 0.6
	if profile.PredictionConfidence > e.cfg.ConfidenceThreshold {
		wContent, wCollab = 0.6, 0.4
	}

	keys := make(map[string]bool, len(content)+len(collaborative))
	for k := range content {
		keys[k] = true
	}
	for k := range collaborative {
		keys[k] = true
	}

	recs := make([]models.Recommendation, 0, len(keys))
	for k := range keys {
		c, hasContent := content[k]
		col, hasCollab := collaborative[k]

		var item models.CandidateItem
		var score float64
		var source models.RecommendationSource
		switch {
		case hasContent && hasCollab:
			// Both signals cover the item: keep the single
			// highest-weighted occurrence, not the sum.
			item = c.item
			score = wContent * c.score
			source = models.SourceContent
			if wCollab*col.score > score {
				score = wCollab * col.score
				source = models.SourceCollaborative
			}
		case hasContent:
			item = c.item
			score = wContent * c.score
			source = models.SourceContent
		default:
			item = col.item
			score = wCollab * col.score
			source = models.SourceCollaborative
		}

		recs = append(recs, models.Recommendation{
			ItemID:     item.ID,
			Kind:       item.Kind,
			Score:      score,
			Confidence: profile.PredictionConfidence,
			Reason:     reasonFor(source, item, profile),
			Source:     source,
		})
	}

	// Deterministic order before diversification: score descending,
	// then ID ascending.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ItemID < recs[j].ItemID
	})
	return recs
}

// diversify greedily selects items, discounting each candidate's score
// by how much of the already selected list shares its kind. A pure-show
// page gets progressively more expensive, letting artists surface.
func (e *Engine) diversify(recs []models.Recommendation, limit int) []models.Recommendation {
	if len(recs) <= 1 {
		return truncate(recs, limit)
	}

	selected := make([]models.Recommendation, 0, limit)
	remaining := append([]models.Recommendation(nil), recs...)
	kindCounts := make(map[models.Kind]int)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, rec := range remaining {
			adjusted := rec.Score
			if len(selected) > 0 {
				sameKind := float64(kindCounts[rec.Kind]) / float64(len(selected))
				adjusted = rec.Score * (1 - e.cfg.DiversityFactor*sameKind)
			}
			if adjusted > bestScore {
				bestScore = adjusted
				bestIdx = i
			}
		}

		pick := remaining[bestIdx]
		selected = append(selected, pick)
		kindCounts[pick.Kind]++
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// popularityScore maps a popularity rank onto a descending (0,1] scale.
func popularityScore(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-rank) / float64(total)
}

// itemKey dedupes across stages on (kind, id) so a show and an artist
// sharing an ID never collide.
func itemKey(item models.CandidateItem) string {
	return string(item.Kind) + ":" + item.ID
}

// reasonFor renders a user-facing explanation for a recommendation.
func reasonFor(source models.RecommendationSource, item models.CandidateItem, profile *models.UserFeatureProfile) string {
	switch source {
	case models.SourceContent:
		if g := topMatchedGenre(item, profile.GenreWeights); g != "" {
			return fmt.Sprintf("matches your taste in %s", g)
		}
		return "matches your genre preferences"
	case models.SourceCollaborative:
		return "popular among fans with similar taste"
	default:
		return "popular with the community right now"
	}
}

// topMatchedGenre returns the item genre the user weights highest.
// Matching is case-insensitive like the content score itself.
func topMatchedGenre(item models.CandidateItem, weights map[string]float64) string {
	normalized := make(map[string]float64, len(weights))
	for g, w := range weights {
		normalized[strings.ToLower(g)] = w
	}

	best := ""
	bestWeight := 0.0
	for _, g := range item.Genres {
		if w, ok := normalized[strings.ToLower(g)]; ok && w > bestWeight {
			bestWeight = w
			best = g
		}
	}
	return best
}

func truncate(recs []models.Recommendation, limit int) []models.Recommendation {
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

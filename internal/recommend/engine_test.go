// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package recommend

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/scoring"
)

// fakeSource is a scriptable datastore for pipeline tests.
type fakeSource struct {
	profile     *models.UserFeatureProfile
	profileErr  error
	pool        []models.CandidateItem
	poolErr     error
	vectors     []scoring.VectorEntry
	vectorsErr  error
	engagements map[string][]string
	engageErr   error

	popularCalls atomic.Int64
}

func (f *fakeSource) Candidates(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]models.CandidateItem, error) {
	return f.Popular(ctx, limit)
}

func (f *fakeSource) Popular(ctx context.Context, limit int) ([]models.CandidateItem, error) {
	f.popularCalls.Add(1)
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	if len(f.pool) > limit {
		return f.pool[:limit], nil
	}
	return f.pool, nil
}

func (f *fakeSource) UserProfile(ctx context.Context, userID string) (*models.UserFeatureProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeSource) BehaviorVectors(ctx context.Context) ([]scoring.VectorEntry, error) {
	if f.vectorsErr != nil {
		return nil, f.vectorsErr
	}
	return f.vectors, nil
}

func (f *fakeSource) Engagements(ctx context.Context, userID string) ([]string, error) {
	if f.engageErr != nil {
		return nil, f.engageErr
	}
	return f.engagements[userID], nil
}

func newTestEngine(src *fakeSource) *Engine {
	layer := cache.New(cache.Options{DefaultTTL: time.Minute})
	return NewEngine(Config{}, src, layer, zerolog.Nop())
}

func candidate(id string, kind models.Kind, genres ...string) models.CandidateItem {
	return models.CandidateItem{
		ID:     id,
		Kind:   kind,
		Name:   "Item " + id,
		Genres: genres,
	}
}

func profileWith(confidence float64, vector []float64, genres map[string]float64) *models.UserFeatureProfile {
	return &models.UserFeatureProfile{
		UserID:               "u1",
		GenreWeights:         genres,
		BehaviorVector:       vector,
		ActivityLevel:        models.ActivityMedium,
		PredictionConfidence: confidence,
	}
}

// A user without a profile gets popular items at exactly 0.5 confidence.
func TestColdStart(t *testing.T) {
	src := &fakeSource{
		profileErr: fmt.Errorf("u1: %w", models.ErrProfileMissing),
		pool: []models.CandidateItem{
			candidate("s1", models.KindShow, "rock"),
			candidate("a1", models.KindArtist, "rock"),
		},
	}
	engine := newTestEngine(src)

	result, err := engine.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	if !result.ColdStart {
		t.Error("ColdStart = false, want true")
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("len(Recommendations) = %d, want 2", len(result.Recommendations))
	}
	for _, rec := range result.Recommendations {
		if rec.Source != models.SourcePopular {
			t.Errorf("rec %s source = %q, want popular", rec.ItemID, rec.Source)
		}
		if rec.Confidence != 0.5 {
			t.Errorf("rec %s confidence = %v, want 0.5", rec.ItemID, rec.Confidence)
		}
	}
	// Popularity order is preserved.
	if result.Recommendations[0].ItemID != "s1" {
		t.Errorf("first rec = %q, want most popular \"s1\"", result.Recommendations[0].ItemID)
	}
}

// Content-based flow: genre overlap drives scores and reasons.
func TestContentRecommendations(t *testing.T) {
	src := &fakeSource{
		profile: profileWith(0.9, nil, map[string]float64{"indie rock": 0.9, "folk": 0.4}),
		pool: []models.CandidateItem{
			candidate("match", models.KindShow, "indie rock"),
			candidate("partial", models.KindShow, "folk", "metal"),
			candidate("miss", models.KindShow, "edm"),
		},
	}
	engine := newTestEngine(src)

	result, err := engine.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	if result.ColdStart || result.Degraded {
		t.Errorf("ColdStart/Degraded = %v/%v, want false/false", result.ColdStart, result.Degraded)
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("len(Recommendations) = %d, want 2 (no-overlap item dropped)", len(result.Recommendations))
	}
	top := result.Recommendations[0]
	if top.ItemID != "match" {
		t.Errorf("top rec = %q, want \"match\"", top.ItemID)
	}
	if top.Reason != "matches your taste in indie rock" {
		t.Errorf("top reason = %q", top.Reason)
	}
	if top.Confidence != 0.9 {
		t.Errorf("top confidence = %v, want profile confidence 0.9", top.Confidence)
	}
}

// Collaborative flow: items engaged by similar users score by neighbor
// fraction.
func TestCollaborativeRecommendations(t *testing.T) {
	src := &fakeSource{
		profile: profileWith(0.5, []float64{1, 0}, map[string]float64{}),
		pool: []models.CandidateItem{
			candidate("both", models.KindShow),
			candidate("one", models.KindShow),
		},
		vectors: []scoring.VectorEntry{
			{ID: "u1", Vector: []float64{1, 0}},   // self, excluded
			{ID: "n1", Vector: []float64{1, 0.1}}, // similar
			{ID: "n2", Vector: []float64{1, 0.2}}, // similar
			{ID: "far", Vector: []float64{0, 1}},  // below threshold
		},
		engagements: map[string][]string{
			"n1": {"both", "one"},
			"n2": {"both"},
		},
	}
	engine := newTestEngine(src)

	result, err := engine.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	if len(result.Recommendations) != 2 {
		t.Fatalf("len(Recommendations) = %d, want 2", len(result.Recommendations))
	}
	top := result.Recommendations[0]
	if top.ItemID != "both" || top.Source != models.SourceCollaborative {
		t.Errorf("top rec = %+v, want collaborative \"both\"", top)
	}
	// "both" engaged by 2/2 neighbors, "one" by 1/2; low-confidence
	// profile weights collaborative at 0.6.
	if top.Score != 0.6 {
		t.Errorf("top score = %v, want 1.0x0.6", top.Score)
	}
}

// A failed collaborative stage degrades to content-only instead of
// failing the request.
func TestCollaborativeFailureDegrades(t *testing.T) {
	src := &fakeSource{
		profile:    profileWith(0.9, []float64{1, 0}, map[string]float64{"rock": 0.8}),
		pool:       []models.CandidateItem{candidate("s1", models.KindShow, "rock")},
		vectorsErr: fmt.Errorf("down: %w", models.ErrDataUnavailable),
	}
	engine := newTestEngine(src)

	result, err := engine.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() error: %v, want degraded result", err)
	}

	if !result.Degraded {
		t.Error("Degraded = false, want true")
	}
	if result.Stages["collaborative"] != StageFailed {
		t.Errorf("collaborative stage = %q, want failed", result.Stages["collaborative"])
	}
	if result.Stages["content"] != StageOK {
		t.Errorf("content stage = %q, want ok", result.Stages["content"])
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Source != models.SourceContent {
		t.Errorf("Recommendations = %+v, want content-only", result.Recommendations)
	}
}

// When both signals cover an item, the merge keeps the single
// highest-weighted occurrence, and the weights flip on profile
// confidence.
func TestMergeWeightsFollowConfidence(t *testing.T) {
	build := func(confidence float64) *Result {
		src := &fakeSource{
			profile: profileWith(confidence, []float64{1, 0}, map[string]float64{"rock": 1.0}),
			pool:    []models.CandidateItem{candidate("s1", models.KindShow, "rock")},
			vectors: []scoring.VectorEntry{
				{ID: "n1", Vector: []float64{1, 0}},
			},
			engagements: map[string][]string{"n1": {"s1"}},
		}
		engine := newTestEngine(src)
		result, err := engine.Recommend(context.Background(), "u1", 10)
		if err != nil {
			t.Fatalf("Recommend() error: %v", err)
		}
		return result
	}

	// Content score 1.0, collaborative score 1.0. Either way the winning
	// occurrence carries weight 0.6; the occurrences are never summed,
	// only the dominant source flips.
	confident := build(0.9)
	if confident.Recommendations[0].Source != models.SourceContent {
		t.Errorf("confident profile source = %q, want content-dominant", confident.Recommendations[0].Source)
	}
	if got := confident.Recommendations[0].Score; got != 0.6 {
		t.Errorf("confident profile score = %v, want winning occurrence 1.0x0.6", got)
	}

	uncertain := build(0.3)
	if uncertain.Recommendations[0].Source != models.SourceCollaborative {
		t.Errorf("uncertain profile source = %q, want collaborative-dominant", uncertain.Recommendations[0].Source)
	}
	if got := uncertain.Recommendations[0].Score; got != 0.6 {
		t.Errorf("uncertain profile score = %v, want winning occurrence 1.0x0.6", got)
	}
}

// Greedy diversity: a run of same-kind items gets broken up by the
// other kind even at a lower raw score.
func TestDiversityBreaksKindRuns(t *testing.T) {
	engine := newTestEngine(&fakeSource{})
	engine.cfg.DiversityFactor = 0.5

	recs := []models.Recommendation{
		{ItemID: "s1", Kind: models.KindShow, Score: 1.0},
		{ItemID: "s2", Kind: models.KindShow, Score: 0.95},
		{ItemID: "s3", Kind: models.KindShow, Score: 0.9},
		{ItemID: "a1", Kind: models.KindArtist, Score: 0.6},
	}

	out := engine.diversify(recs, 4)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	// After s1, every show pays the same-kind penalty: s2 adjusts to
	// 0.95x(1-0.5x1.0)=0.475 while a1 keeps 0.6, so the artist jumps
	// the queue.
	if out[1].ItemID != "a1" {
		t.Errorf("second pick = %q, want diversity to promote \"a1\"", out[1].ItemID)
	}
	if out[2].ItemID != "s2" || out[3].ItemID != "s3" {
		t.Errorf("remaining picks = %q, %q, want s2, s3", out[2].ItemID, out[3].ItemID)
	}
}

func TestDiversityZeroFactorKeepsOrder(t *testing.T) {
	engine := newTestEngine(&fakeSource{})
	engine.cfg.DiversityFactor = 0

	recs := []models.Recommendation{
		{ItemID: "s1", Kind: models.KindShow, Score: 1.0},
		{ItemID: "s2", Kind: models.KindShow, Score: 0.9},
		{ItemID: "a1", Kind: models.KindArtist, Score: 0.8},
	}

	out := engine.diversify(recs, 3)
	for i, want := range []string{"s1", "s2", "a1"} {
		if out[i].ItemID != want {
			t.Errorf("out[%d] = %q, want %q", i, out[i].ItemID, want)
		}
	}
}

// At full diversity strength a homogeneous list has nothing to promote:
// every later candidate pays the same full penalty, so plain score
// order holds.
func TestDiversityFullFactorHomogeneousKeepsOrder(t *testing.T) {
	engine := newTestEngine(&fakeSource{})
	engine.cfg.DiversityFactor = 1.0

	recs := []models.Recommendation{
		{ItemID: "s1", Kind: models.KindShow, Score: 1.0},
		{ItemID: "s2", Kind: models.KindShow, Score: 0.9},
		{ItemID: "s3", Kind: models.KindShow, Score: 0.8},
	}

	out := engine.diversify(recs, 3)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if out[i].ItemID != want {
			t.Errorf("out[%d] = %q, want %q", i, out[i].ItemID, want)
		}
	}
}

func TestRecommendCachesResult(t *testing.T) {
	src := &fakeSource{
		profileErr: fmt.Errorf("u1: %w", models.ErrProfileMissing),
		pool:       []models.CandidateItem{candidate("s1", models.KindShow)},
	}
	engine := newTestEngine(src)
	ctx := context.Background()

	if _, err := engine.Recommend(ctx, "u1", 10); err != nil {
		t.Fatalf("first Recommend() error: %v", err)
	}
	if _, err := engine.Recommend(ctx, "u1", 10); err != nil {
		t.Fatalf("second Recommend() error: %v", err)
	}
	if got := src.popularCalls.Load(); got != 1 {
		t.Errorf("popular fetches = %d, want 1 (second call cached)", got)
	}

	if n := engine.InvalidateUser("u1"); n != 1 {
		t.Errorf("InvalidateUser = %d, want 1", n)
	}
	if _, err := engine.Recommend(ctx, "u1", 10); err != nil {
		t.Fatalf("third Recommend() error: %v", err)
	}
	if got := src.popularCalls.Load(); got != 2 {
		t.Errorf("popular fetches = %d, want 2 after invalidation", got)
	}
}

func TestRecommendServesStaleOnSourceFailure(t *testing.T) {
	src := &fakeSource{
		profile: profileWith(0.9, nil, map[string]float64{"rock": 0.8}),
		pool:    []models.CandidateItem{candidate("s1", models.KindShow, "rock")},
	}
	engine := newTestEngine(src)
	ctx := context.Background()

	warm, err := engine.Recommend(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("warm Recommend() error: %v", err)
	}

	// A profile rebuild invalidates the fresh entry, then the datastore
	// goes down.
	engine.InvalidateUser("u1")
	src.profileErr = fmt.Errorf("connection refused: %w", models.ErrDataUnavailable)

	stale, err := engine.Recommend(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() with dead source error: %v, want stale fallback", err)
	}
	if len(stale.Recommendations) != len(warm.Recommendations) ||
		stale.Recommendations[0].ItemID != warm.Recommendations[0].ItemID {
		t.Errorf("stale result = %+v, want previous result %+v", stale.Recommendations, warm.Recommendations)
	}
}

// The fallback also covers profile-less users whose popularity fetch
// fails after a warm result exists.
func TestColdStartServesStaleOnSourceFailure(t *testing.T) {
	src := &fakeSource{
		profileErr: fmt.Errorf("u1: %w", models.ErrProfileMissing),
		pool:       []models.CandidateItem{candidate("s1", models.KindShow)},
	}
	engine := newTestEngine(src)
	ctx := context.Background()

	warm, err := engine.Recommend(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("warm Recommend() error: %v", err)
	}

	engine.InvalidateUser("u1")
	src.poolErr = fmt.Errorf("connection refused: %w", models.ErrDataUnavailable)

	stale, err := engine.Recommend(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() with dead source error: %v, want stale fallback", err)
	}
	if !stale.ColdStart || stale.Recommendations[0].ItemID != warm.Recommendations[0].ItemID {
		t.Errorf("stale result = %+v, want previous cold-start result %+v", stale, warm)
	}
}

func TestRecommendFailsWithoutStaleCopy(t *testing.T) {
	src := &fakeSource{
		profileErr: fmt.Errorf("down: %w", models.ErrDataUnavailable),
	}
	engine := newTestEngine(src)

	if _, err := engine.Recommend(context.Background(), "u1", 10); err == nil {
		t.Error("Recommend() = nil error, want error when no stale copy exists")
	}
}

func TestRecommendRejectsEmptyUser(t *testing.T) {
	engine := newTestEngine(&fakeSource{})
	if _, err := engine.Recommend(context.Background(), "", 10); err == nil {
		t.Error("Recommend(\"\") = nil error, want error")
	}
}

// All-stages-empty with a degraded pipeline falls back to popularity.
func TestDegradedWithNoContentFallsBackToPopular(t *testing.T) {
	src := &fakeSource{
		// Profile has no genre overlap with the pool and the
		// collaborative stage is down.
		profile:    profileWith(0.8, []float64{1, 0}, map[string]float64{"jazz": 1.0}),
		pool:       []models.CandidateItem{candidate("s1", models.KindShow, "edm")},
		vectorsErr: fmt.Errorf("down: %w", models.ErrDataUnavailable),
	}
	engine := newTestEngine(src)

	result, err := engine.Recommend(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if !result.ColdStart {
		t.Error("ColdStart = false, want popularity fallback")
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Source != models.SourcePopular {
		t.Errorf("Recommendations = %+v, want popular fallback", result.Recommendations)
	}
}

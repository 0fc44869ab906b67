// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package trending

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/scoring"
)

// fakeSource serves canned candidates and counts fetches.
type fakeSource struct {
	candidates []models.CandidateItem
	err        error
	calls      atomic.Int64
}

func (f *fakeSource) Candidates(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]models.CandidateItem, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candidates) > limit {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

func (f *fakeSource) Popular(ctx context.Context, limit int) ([]models.CandidateItem, error) {
	return f.Candidates(ctx, models.KindShow, models.TimeframeWeek, limit)
}

func (f *fakeSource) UserProfile(ctx context.Context, userID string) (*models.UserFeatureProfile, error) {
	return nil, models.ErrProfileMissing
}

func (f *fakeSource) BehaviorVectors(ctx context.Context) ([]scoring.VectorEntry, error) {
	return nil, nil
}

func (f *fakeSource) Engagements(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func newTestRanker(src *fakeSource) *Ranker {
	layer := cache.New(cache.Options{DefaultTTL: time.Minute})
	return NewRanker(Config{}, src, layer, nil, zerolog.Nop())
}

func show(id string, votes int64, ratio, velocity float64, followers int64, days int) models.CandidateItem {
	return models.CandidateItem{
		ID:             id,
		Kind:           models.KindShow,
		Name:           "Show " + id,
		VoteCount:      votes,
		PositiveRatio:  ratio,
		VoteVelocity:   velocity,
		Followers:      followers,
		DaysUntilEvent: days,
		CreatedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EventAt:        time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

// An actively voted show from a small artist must outrank a passive show
// from an artist with a million followers.
func TestActiveItemBeatsPassiveGiant(t *testing.T) {
	src := &fakeSource{candidates: []models.CandidateItem{
		show("passive", 3, 0.6, 0.01, 1_000_000, 60),
		show("active", 400, 0.9, 12, 5_000, 10),
	}}
	r := newTestRanker(src)

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2", len(ranked))
	}
	if ranked[0].ID != "active" {
		t.Errorf("top item = %q, want \"active\"", ranked[0].ID)
	}
}

func TestTrendingRejectsUnknownKind(t *testing.T) {
	r := newTestRanker(&fakeSource{})
	if _, err := r.Trending(context.Background(), models.Kind("venue"), models.TimeframeWeek, 10); err == nil {
		t.Error("Trending(unknown kind) = nil error, want error")
	}
	if _, err := r.Trending(context.Background(), models.KindShow, models.Timeframe("year"), 10); err == nil {
		t.Error("Trending(unknown timeframe) = nil error, want error")
	}
}

func TestTrendingEmptyCandidates(t *testing.T) {
	r := newTestRanker(&fakeSource{})

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeDay, 10)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("len(ranked) = %d, want 0", len(ranked))
	}
}

func TestTrendingLimitClamp(t *testing.T) {
	items := make([]models.CandidateItem, 120)
	for i := range items {
		items[i] = show(fmt.Sprintf("s%03d", i), int64(100+i), 0.8, 1, 1000, 30)
	}
	src := &fakeSource{candidates: items}
	r := newTestRanker(src)

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 500)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if len(ranked) != 50 {
		t.Errorf("len(ranked) with limit 500 = %d, want clamped to 50", len(ranked))
	}

	ranked, err = r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 0)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if len(ranked) != 20 {
		t.Errorf("len(ranked) with limit 0 = %d, want default 20", len(ranked))
	}
}

func TestTrendingCachesResult(t *testing.T) {
	src := &fakeSource{candidates: []models.CandidateItem{show("s1", 50, 0.8, 2, 1000, 20)}}
	r := newTestRanker(src)
	ctx := context.Background()

	first, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("first Trending() error: %v", err)
	}
	second, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("second Trending() error: %v", err)
	}

	if got := src.calls.Load(); got != 1 {
		t.Errorf("source fetches = %d, want 1 (second call cached)", got)
	}
	if len(first) != len(second) || first[0].Score != second[0].Score {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestTrendingServesStaleOnSourceFailure(t *testing.T) {
	src := &fakeSource{candidates: []models.CandidateItem{show("s1", 50, 0.8, 2, 1000, 20)}}
	r := newTestRanker(src)
	ctx := context.Background()

	warm, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("warm Trending() error: %v", err)
	}

	// Votes arrive and invalidate the fresh entry, then the datastore
	// goes down.
	r.InvalidateAll()
	src.err = fmt.Errorf("connection refused: %w", models.ErrDataUnavailable)

	stale, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("Trending() with dead source error: %v, want stale fallback", err)
	}
	if len(stale) != len(warm) || stale[0].ID != warm[0].ID {
		t.Errorf("stale result = %+v, want previous list %+v", stale, warm)
	}
}

func TestTrendingFailsWithoutStaleCopy(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("down: %w", models.ErrDataUnavailable)}
	r := newTestRanker(src)

	if _, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 10); err == nil {
		t.Error("Trending() = nil error, want error when no stale copy exists")
	}
}

func TestTrendingSkipsNonFiniteScores(t *testing.T) {
	bad := show("bad", 10, 0.5, math.Inf(1), 1000, 10)
	good := show("good", 10, 0.5, 1, 1000, 10)
	src := &fakeSource{candidates: []models.CandidateItem{bad, good}}

	var logs bytes.Buffer
	layer := cache.New(cache.Options{DefaultTTL: time.Minute})
	r := NewRanker(Config{}, src, layer, nil, zerolog.New(&logs))

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if len(ranked) != 1 || ranked[0].ID != "good" {
		t.Errorf("ranked = %+v, want only \"good\"", ranked)
	}
	// The skip is classified as a compute failure, not silently dropped.
	if !strings.Contains(logs.String(), models.ErrComputeFailure.Error()) {
		t.Errorf("skip log = %q, want %q classification", logs.String(), models.ErrComputeFailure)
	}
}

func TestBoostPromotesImminentVerifiedShow(t *testing.T) {
	plain := show("plain", 100, 0.8, 3, 10_000, 40)
	boosted := show("boosted", 95, 0.8, 3, 10_000, 7)
	boosted.Verified = true

	src := &fakeSource{candidates: []models.CandidateItem{plain, boosted}}
	r := newTestRanker(src)

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if ranked[0].ID != "boosted" {
		t.Errorf("top item = %q, want boost to promote \"boosted\"", ranked[0].ID)
	}
	if !ranked[0].Boosted {
		t.Error("top item not marked Boosted")
	}
	if ranked[1].Boosted {
		t.Error("plain item marked Boosted")
	}
}

func TestTieBreakPrefersNewerItem(t *testing.T) {
	older := show("older", 100, 0.8, 2, 1000, 30)
	newer := show("newer", 100, 0.8, 2, 1000, 30)
	newer.CreatedAt = older.CreatedAt.Add(24 * time.Hour)

	src := &fakeSource{candidates: []models.CandidateItem{older, newer}}
	r := newTestRanker(src)

	ranked, err := r.Trending(context.Background(), models.KindShow, models.TimeframeWeek, 10)
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if ranked[0].ID != "newer" {
		t.Errorf("top item = %q, want newer item to win the tie", ranked[0].ID)
	}
}

func TestInvalidateKind(t *testing.T) {
	src := &fakeSource{candidates: []models.CandidateItem{show("s1", 50, 0.8, 2, 1000, 20)}}
	r := newTestRanker(src)
	ctx := context.Background()

	if _, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10); err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	if n := r.InvalidateKind(models.KindShow); n != 1 {
		t.Errorf("InvalidateKind(show) = %d, want 1", n)
	}

	if _, err := r.Trending(ctx, models.KindShow, models.TimeframeWeek, 10); err != nil {
		t.Fatalf("Trending() after invalidation error: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source fetches = %d, want 2 after invalidation", got)
	}
}

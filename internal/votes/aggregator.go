// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
)

// Invalidator is the slice of the cache layer the aggregator needs.
// Implemented by *cache.Layer.
type Invalidator interface {
	InvalidateByTags(tags ...string) int
}

// TrendingTag is the global tag shared by all trending cache entries.
const TrendingTag = "trending"

// Config holds aggregator tuning parameters.
type Config struct {
	// Window is the sliding window over which velocity and ratio are
	// tracked. Default: 7 days (matches the default trending timeframe).
	Window time.Duration

	// Buckets divides the window. Default: 84 (2h slices for 7 days).
	Buckets int

	// Debounce is the coalescing delay before a scheduled invalidation
	// fires. New votes on the same item reset the timer. Default: 2s.
	Debounce time.Duration

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Aggregator consumes vote signals, tracks per-item vote windows, and
// schedules debounced cache invalidations. Safe for concurrent use.
type Aggregator struct {
	cfg         Config
	invalidator Invalidator
	logger      zerolog.Logger

	mu    sync.Mutex
	items map[string]*VoteWindow

	timersMu sync.Mutex
	timers   map[string]*time.Timer
	closed   bool
}

// NewAggregator creates a vote aggregator that invalidates through inv.
func NewAggregator(cfg Config, inv Invalidator, logger zerolog.Logger) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}
	if cfg.Buckets <= 0 {
		cfg.Buckets = 84
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Aggregator{
		cfg:         cfg,
		invalidator: inv,
		logger:      logger,
		items:       make(map[string]*VoteWindow),
		timers:      make(map[string]*time.Timer),
	}
}

// Record processes one vote signal: it updates the show and artist vote
// windows and schedules a debounced invalidation of the affected tags.
// The signal itself is never stored.
func (a *Aggregator) Record(sig models.VoteSignal) {
	metrics.VoteEventsTotal.Inc()

	for _, id := range []string{sig.ShowID, sig.ArtistID} {
		if id == "" {
			continue
		}
		a.window(id).Add(sig.Delta.Up, sig.Delta.Down)
	}

	tags := make([]string, 0, 3)
	if sig.ShowID != "" {
		tags = append(tags, models.KindShow.Tag(sig.ShowID))
	}
	if sig.ArtistID != "" {
		tags = append(tags, models.KindArtist.Tag(sig.ArtistID))
	}
	tags = append(tags, TrendingTag)

	a.scheduleInvalidation(tags)
}

// Velocity returns the item's voting rate in votes per hour over the
// configured window, or 0 for an untracked item.
func (a *Aggregator) Velocity(itemID string) float64 {
	a.mu.Lock()
	w, ok := a.items[itemID]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return w.Rate()
}

// PositiveRatio returns the item's upvote fraction over the window, or 0
// for an untracked item.
func (a *Aggregator) PositiveRatio(itemID string) float64 {
	a.mu.Lock()
	w, ok := a.items[itemID]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return w.PositiveRatio()
}

// Enrich overlays live velocity (and ratio, when the snapshot carries no
// votes of its own) onto a candidate snapshot fetched from the external
// store. The snapshot values win when the aggregator has no signal.
func (a *Aggregator) Enrich(item *models.CandidateItem) {
	a.mu.Lock()
	w, ok := a.items[item.ID]
	a.mu.Unlock()
	if !ok {
		return
	}

	if rate := w.Rate(); rate > item.VoteVelocity {
		item.VoteVelocity = rate
	}
	if up, down := w.Totals(); up+down > 0 && item.VoteCount == 0 {
		item.VoteCount = up + down
		item.PositiveRatio = float64(up) / float64(up+down)
	}
}

// Close cancels all pending invalidation timers.
func (a *Aggregator) Close() {
	a.timersMu.Lock()
	defer a.timersMu.Unlock()
	a.closed = true
	for key, t := range a.timers {
		t.Stop()
		delete(a.timers, key)
	}
}

// window returns (creating on demand) the vote window for an item.
func (a *Aggregator) window(itemID string) *VoteWindow {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.items[itemID]
	if !ok {
		w = NewVoteWindow(a.cfg.Window, a.cfg.Buckets, a.cfg.Clock)
		a.items[itemID] = w
	}
	return w
}

// scheduleInvalidation arms (or resets) the coalescing timer for a tag
// group. A burst of votes on the same item therefore produces exactly one
// invalidation, fired Debounce after the last vote.
func (a *Aggregator) scheduleInvalidation(tags []string) {
	// The timer key is order-independent so show/artist pairs coalesce
	// regardless of signal field ordering.
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "|")

	a.timersMu.Lock()
	defer a.timersMu.Unlock()

	if a.closed {
		return
	}

	if t, ok := a.timers[key]; ok {
		t.Reset(a.cfg.Debounce)
		return
	}

	a.timers[key] = time.AfterFunc(a.cfg.Debounce, func() {
		a.timersMu.Lock()
		delete(a.timers, key)
		a.timersMu.Unlock()

		count := a.invalidator.InvalidateByTags(tags...)
		metrics.DebouncedInvalidations.Inc()
		a.logger.Debug().
			Strs("tags", tags).
			Int("entries", count).
			Msg("debounced cache invalidation")
	})
}

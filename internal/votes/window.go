// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"sync"
	"time"
)

// voteBucket holds the up/down counts for one time slice.
type voteBucket struct {
	up   int64
	down int64
}

// VoteWindow is a memory-efficient sliding window over vote activity.
// Time is divided into equal buckets in a circular buffer; counts older
// than the window fall out as the buffer advances.
//
// Complexity:
//   - Add: O(1) amortized
//   - Totals: O(k) where k = number of buckets
//   - Memory: O(k) per tracked item
type VoteWindow struct {
	mu         sync.Mutex
	buckets    []voteBucket
	bucketSize time.Duration
	windowSize time.Duration
	current    int
	lastUpdate time.Time
	clock      func() time.Time
}

// NewVoteWindow creates a sliding vote window divided into numBuckets
// slices. A nil clock uses time.Now.
func NewVoteWindow(windowSize time.Duration, numBuckets int, clock func() time.Time) *VoteWindow {
	if numBuckets <= 0 {
		numBuckets = 84
	}
	if windowSize <= 0 {
		windowSize = 7 * 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}

	return &VoteWindow{
		buckets:    make([]voteBucket, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		windowSize: windowSize,
		lastUpdate: clock(),
		clock:      clock,
	}
}

// Add records up/down vote deltas in the current bucket.
func (w *VoteWindow) Add(up, down int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	w.buckets[w.current].up += int64(up)
	w.buckets[w.current].down += int64(down)
}

// Totals returns the up/down counts within the window.
func (w *VoteWindow) Totals() (up, down int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	for _, b := range w.buckets {
		up += b.up
		down += b.down
	}
	return up, down
}

// Rate returns the total voting rate in votes per hour over the window.
func (w *VoteWindow) Rate() float64 {
	up, down := w.Totals()
	hours := w.windowSize.Hours()
	if hours == 0 {
		return 0
	}
	return float64(up+down) / hours
}

// PositiveRatio returns the fraction of votes in the window that are
// upvotes, or 0 when the window is empty.
func (w *VoteWindow) PositiveRatio() float64 {
	up, down := w.Totals()
	total := up + down
	if total == 0 {
		return 0
	}
	return float64(up) / float64(total)
}

// advance rotates the circular buffer forward, zeroing buckets that have
// aged past the window. Must be called with mu held.
func (w *VoteWindow) advance() {
	now := w.clock()
	elapsed := now.Sub(w.lastUpdate)
	if elapsed < w.bucketSize {
		return
	}

	steps := int(elapsed / w.bucketSize)
	if steps >= len(w.buckets) {
		for i := range w.buckets {
			w.buckets[i] = voteBucket{}
		}
		w.current = 0
	} else {
		for i := 0; i < steps; i++ {
			w.current = (w.current + 1) % len(w.buckets)
			w.buckets[w.current] = voteBucket{}
		}
	}

	w.lastUpdate = w.lastUpdate.Add(time.Duration(steps) * w.bucketSize)
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"math"
	"sync"
	"testing"
	"time"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestVoteWindowTotals(t *testing.T) {
	clock := newTestClock()
	w := NewVoteWindow(7*24*time.Hour, 84, clock.Now)

	w.Add(10, 2)
	w.Add(5, 1)

	up, down := w.Totals()
	if up != 15 || down != 3 {
		t.Errorf("Totals() = (%d, %d), want (15, 3)", up, down)
	}
}

func TestVoteWindowRate(t *testing.T) {
	clock := newTestClock()
	w := NewVoteWindow(7*24*time.Hour, 84, clock.Now)

	// 168 votes over a 168-hour window = 1 vote/hour.
	w.Add(168, 0)

	if got := w.Rate(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Rate() = %v, want 1.0", got)
	}
}

func TestVoteWindowPositiveRatio(t *testing.T) {
	clock := newTestClock()
	w := NewVoteWindow(7*24*time.Hour, 84, clock.Now)

	if got := w.PositiveRatio(); got != 0 {
		t.Errorf("empty window PositiveRatio() = %v, want 0", got)
	}

	w.Add(3, 1)
	if got := w.PositiveRatio(); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("PositiveRatio() = %v, want 0.75", got)
	}
}

func TestVoteWindowExpiry(t *testing.T) {
	clock := newTestClock()
	w := NewVoteWindow(time.Hour, 4, clock.Now)

	w.Add(100, 0)

	// Still inside the window after half of it elapses.
	clock.Advance(30 * time.Minute)
	if up, _ := w.Totals(); up != 100 {
		t.Errorf("Totals() after 30m = %d, want 100", up)
	}

	// Past the full window everything ages out.
	clock.Advance(2 * time.Hour)
	if up, down := w.Totals(); up != 0 || down != 0 {
		t.Errorf("Totals() after expiry = (%d, %d), want (0, 0)", up, down)
	}
}

func TestVoteWindowPartialExpiry(t *testing.T) {
	clock := newTestClock()
	w := NewVoteWindow(time.Hour, 4, clock.Now)

	w.Add(40, 0)
	clock.Advance(45 * time.Minute)
	w.Add(10, 0)

	// The first batch sits 3 buckets back; advancing 30 more minutes
	// pushes it out while keeping the second batch.
	clock.Advance(30 * time.Minute)
	if up, _ := w.Totals(); up != 10 {
		t.Errorf("Totals() after partial expiry = %d, want 10", up)
	}
}

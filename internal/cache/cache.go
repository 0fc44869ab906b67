// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
)

// Clock supplies the current time. Injected so TTL behavior is testable
// without sleeps and so the cache never reads a hidden global.
type Clock func() time.Time

// Priority influences eviction order when the cache is over capacity.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// entry is a single cached value with its invalidation metadata.
type entry struct {
	data      any
	tags      []string
	createdAt time.Time
	expiresAt time.Time
	priority  Priority
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Evictions     int64     `json:"evictions"`
	Invalidations int64     `json:"invalidations"`
	SharedLoads   int64     `json:"shared_loads"`
	TotalKeys     int64     `json:"total_keys"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// Options configures a Layer.
type Options struct {
	// DefaultTTL is applied when SetWithTTL callers pass ttl <= 0.
	// Default: 5 minutes.
	DefaultTTL time.Duration

	// MaxEntries bounds the in-memory tier. 0 means unlimited.
	MaxEntries int

	// Clock overrides the time source. Default: time.Now.
	Clock Clock

	// Tier is the optional persistent second tier.
	Tier Tier

	// Logger receives eviction and corruption diagnostics.
	Logger zerolog.Logger
}

// Layer is the engine's tiered cache. It is safe for concurrent use; the
// single-flight GetOrCompute contract guarantees that concurrent misses on
// the same key run the compute function exactly once.
type Layer struct {
	mu       sync.RWMutex
	entries  map[string]entry
	tagIndex map[string]map[string]struct{}

	defaultTTL time.Duration
	maxEntries int
	clock      Clock
	tier       Tier
	group      singleflight.Group
	logger     zerolog.Logger

	statsMu sync.Mutex
	stats   Stats
}

// New creates a cache layer from the given options.
func New(opts Options) *Layer {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Layer{
		entries:    make(map[string]entry),
		tagIndex:   make(map[string]map[string]struct{}),
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		clock:      opts.Clock,
		tier:       opts.Tier,
		logger:     opts.Logger,
	}
}

// Get retrieves a value from the in-memory tier.
// Expired entries are treated as absent and removed on the spot.
func (l *Layer) Get(key string) (any, bool) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok {
		l.recordMiss()
		return nil, false
	}

	if l.clock().After(e.expiresAt) {
		l.mu.Lock()
		// Re-check under the write lock; a concurrent writer may have
		// refreshed the entry.
		if cur, still := l.entries[key]; still && l.clock().After(cur.expiresAt) {
			l.removeLocked(key)
		}
		l.mu.Unlock()
		l.recordMiss()
		l.recordEviction(1, "ttl")
		return nil, false
	}

	l.recordHit()
	return e.data, true
}

// Set stores a value with the given TTL, tags and priority.
// A ttl <= 0 uses the layer default. The persistent tier, when present,
// receives a JSON-serialized copy.
func (l *Layer) Set(key string, value any, ttl time.Duration, tags []string, priority Priority) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	if priority == "" {
		priority = PriorityMedium
	}

	now := l.clock()

	l.mu.Lock()
	if l.maxEntries > 0 && len(l.entries) >= l.maxEntries {
		l.evictOverCapacityLocked()
	}
	l.removeLocked(key) // drop stale tag index links before rewriting
	l.entries[key] = entry{
		data:      value,
		tags:      tags,
		createdAt: now,
		expiresAt: now.Add(ttl),
		priority:  priority,
	}
	for _, tag := range tags {
		if l.tagIndex[tag] == nil {
			l.tagIndex[tag] = make(map[string]struct{})
		}
		l.tagIndex[tag][key] = struct{}{}
	}
	total := int64(len(l.entries))
	l.mu.Unlock()

	l.setTotalKeys(total)
	l.tierSet(key, value, ttl, tags)
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. Concurrent callers for the same missing key share a single
// computation (single-flight) and all receive its result or its error.
// Failed computations are not cached.
//
// When a persistent tier is configured, it is consulted before compute;
// a tier entry that fails to decode is treated as corruption: evicted and
// recomputed.
func GetOrCompute[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, tags []string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := l.Get(key); ok {
		if typed, valid := v.(T); valid {
			return typed, nil
		}
		// Type mismatch means a corrupt or reused key; treat as miss.
		l.Delete(key)
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		// Re-check: another flight may have populated the key between the
		// miss and acquiring the flight.
		if v, ok := l.Get(key); ok {
			if typed, valid := v.(T); valid {
				return typed, nil
			}
		}

		if typed, ok := l.tierGet(key, func(data []byte) (any, error) {
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, err
			}
			return out, nil
		}); ok {
			value := typed.(T)
			l.Set(key, value, ttl, tags, PriorityMedium)
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		l.Set(key, value, ttl, tags, PriorityMedium)
		return value, nil
	})

	if shared {
		l.recordSharedLoad()
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Delete removes a single entry from both tiers.
func (l *Layer) Delete(key string) {
	l.mu.Lock()
	l.removeLocked(key)
	total := int64(len(l.entries))
	l.mu.Unlock()

	l.setTotalKeys(total)
	l.recordEviction(1, "explicit")
	if l.tier != nil {
		l.tier.Delete(key)
	}
}

// InvalidateByTags removes every entry whose tag set intersects the given
// tags and returns the number of entries removed. The removal is atomic
// with respect to concurrent reads: a reader sees either the old value or
// a clean miss, never a torn entry.
func (l *Layer) InvalidateByTags(tags ...string) int {
	l.mu.Lock()
	doomed := make(map[string]struct{})
	for _, tag := range tags {
		keys := l.tagIndex[tag]
		metrics.CacheInvalidations.WithLabelValues(tag).Add(float64(len(keys)))
		for key := range keys {
			doomed[key] = struct{}{}
		}
	}
	for key := range doomed {
		l.removeLocked(key)
	}
	total := int64(len(l.entries))
	l.mu.Unlock()

	count := len(doomed)
	l.setTotalKeys(total)
	l.recordInvalidation(int64(count))

	if l.tier != nil {
		count += l.tier.InvalidateByTags(tags)
	}

	return count
}

// Clear removes everything from both tiers.
func (l *Layer) Clear() {
	l.mu.Lock()
	evicted := int64(len(l.entries))
	l.entries = make(map[string]entry)
	l.tagIndex = make(map[string]map[string]struct{})
	l.mu.Unlock()

	l.recordEviction(evicted, "explicit")
	l.setTotalKeys(0)

	if l.tier != nil {
		if err := l.tier.Clear(); err != nil {
			l.logger.Warn().Err(err).Msg("failed to clear persistent tier")
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (l *Layer) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

// HitRate returns the cache hit rate as a percentage.
func (l *Layer) HitRate() float64 {
	s := l.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// evictExpired removes all expired entries from the in-memory tier.
// Called by the Janitor.
func (l *Layer) evictExpired() int {
	now := l.clock()

	l.mu.Lock()
	evicted := 0
	for key, e := range l.entries {
		if now.After(e.expiresAt) {
			l.removeLocked(key)
			evicted++
		}
	}
	total := int64(len(l.entries))
	l.mu.Unlock()

	l.recordEviction(int64(evicted), "ttl")
	l.setTotalKeys(total)

	l.statsMu.Lock()
	l.stats.LastCleanup = now
	l.statsMu.Unlock()

	return evicted
}

// evictOverCapacityLocked frees room when the in-memory tier is full.
// Expired entries go first, then low-priority ones, then the oldest
// entries regardless of priority so maxEntries stays a hard bound.
// Must be called with mu held.
func (l *Layer) evictOverCapacityLocked() {
	now := l.clock()
	for key, e := range l.entries {
		if now.After(e.expiresAt) {
			l.removeLocked(key)
		}
	}
	if l.maxEntries <= 0 || len(l.entries) < l.maxEntries {
		return
	}
	for key, e := range l.entries {
		if e.priority == PriorityLow {
			l.removeLocked(key)
			l.recordEviction(1, "capacity")
			if len(l.entries) < l.maxEntries {
				return
			}
		}
	}
	for len(l.entries) >= l.maxEntries {
		oldestKey := ""
		var oldestAt time.Time
		for key, e := range l.entries {
			if oldestKey == "" || e.createdAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = e.createdAt
			}
		}
		if oldestKey == "" {
			return
		}
		l.removeLocked(oldestKey)
		l.recordEviction(1, "capacity")
	}
}

// removeLocked deletes an entry and its tag index links.
// Must be called with mu held.
func (l *Layer) removeLocked(key string) {
	e, ok := l.entries[key]
	if !ok {
		return
	}
	delete(l.entries, key)
	for _, tag := range e.tags {
		if keys := l.tagIndex[tag]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(l.tagIndex, tag)
			}
		}
	}
}

// tierSet writes a serialized copy of the value to the persistent tier.
func (l *Layer) tierSet(key string, value any, ttl time.Duration, tags []string) {
	if l.tier == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("skipping persistent tier write")
		return
	}
	if err := l.tier.Set(key, data, tags, ttl); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("persistent tier write failed")
	}
}

// tierGet reads from the persistent tier and decodes with the provided
// function. Decode failures are cache corruption: the entry is evicted
// and the read treated as a miss.
func (l *Layer) tierGet(key string, decode func([]byte) (any, error)) (any, bool) {
	if l.tier == nil {
		return nil, false
	}
	data, ok := l.tier.Get(key)
	if !ok {
		return nil, false
	}
	value, err := decode(data)
	if err != nil {
		err = fmt.Errorf("%w: %v", models.ErrCacheCorruption, err)
		l.logger.Warn().Err(err).Str("key", key).Msg("corrupt tier entry evicted")
		l.tier.Delete(key)
		metrics.CacheEvictions.WithLabelValues("corruption").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("badger").Inc()
	return value, true
}

func (l *Layer) recordHit() {
	l.statsMu.Lock()
	l.stats.Hits++
	l.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues("memory").Inc()
}

func (l *Layer) recordMiss() {
	l.statsMu.Lock()
	l.stats.Misses++
	l.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues("memory").Inc()
}

func (l *Layer) recordEviction(n int64, reason string) {
	l.statsMu.Lock()
	l.stats.Evictions += n
	l.statsMu.Unlock()
	metrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
}

func (l *Layer) recordInvalidation(n int64) {
	l.statsMu.Lock()
	l.stats.Invalidations += n
	l.statsMu.Unlock()
}

func (l *Layer) recordSharedLoad() {
	l.statsMu.Lock()
	l.stats.SharedLoads++
	l.statsMu.Unlock()
	metrics.CacheSharedLoads.Inc()
}

func (l *Layer) setTotalKeys(n int64) {
	l.statsMu.Lock()
	l.stats.TotalKeys = n
	l.statsMu.Unlock()
	metrics.CacheEntries.Set(float64(n))
}

// GenerateKey creates a cache key from an operation name and parameters.
// Parameters are serialized to JSON and hashed for a compact stable key.
func GenerateKey(operation string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", operation, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", operation, hash[:16])
}

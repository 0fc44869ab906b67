// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"}, // "memory", "badger"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"tier"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "ttl", "capacity", "corruption", "explicit"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of in-memory cache entries",
		},
	)

	CacheSharedLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_shared_loads_total",
			Help: "Total number of loads coalesced onto an in-flight computation",
		},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of entries removed by tag invalidation",
		},
		[]string{"tag"},
	)

	// Vote Pipeline Metrics
	VoteEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_events_total",
			Help: "Total number of vote-cast events processed",
		},
	)

	VoteEventsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_events_malformed_total",
			Help: "Total number of vote events dropped as unparseable",
		},
	)

	DebouncedInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_debounced_invalidations_total",
			Help: "Total number of debounced cache invalidations fired",
		},
	)

	// Trending Metrics
	TrendingComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trending_compute_duration_seconds",
			Help:    "Duration of trending list computation (cache misses only)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "timeframe"},
	)

	TrendingStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trending_stale_served_total",
			Help: "Total number of trending requests answered from the stale fallback",
		},
	)

	TrendingItemsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trending_items_skipped_total",
			Help: "Total number of candidates skipped for non-finite scores",
		},
	)

	// Recommendation Metrics
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation pipeline runs (cache misses only)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "ok", "degraded", "cold_start", "failed"
	)

	RecommendationStaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_stale_served_total",
			Help: "Total number of recommendation requests answered from the stale fallback",
		},
	)

	RecommendationStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_stage_failures_total",
			Help: "Total number of recommendation stage failures",
		},
		[]string{"stage"}, // "content", "collaborative", "merge"
	)

	// Data Provider Metrics
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of upstream datastore requests in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_errors_total",
			Help: "Total number of upstream datastore errors",
		},
		[]string{"operation", "error_type"}, // error_type: "timeout", "http", "decode", "breaker_open"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderRequest records an upstream datastore request metric
func RecordProviderRequest(operation string, duration time.Duration, errorType string) {
	ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errorType != "" {
		ProviderErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordTrendingCompute records a trending list computation
func RecordTrendingCompute(kind, timeframe string, duration time.Duration) {
	TrendingComputeDuration.WithLabelValues(kind, timeframe).Observe(duration.Seconds())
}

// RecordRecommendation records a recommendation pipeline run
func RecordRecommendation(outcome string, duration time.Duration) {
	RecommendationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetCircuitBreakerState updates the breaker state gauge
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

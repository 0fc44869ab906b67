// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/cache"
	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/recommend"
	"github.com/encorehq/encore/internal/trending"
)

// TrendingRanker is the slice of the trending package the API serves.
type TrendingRanker interface {
	Trending(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]trending.RankedItem, error)
	InvalidateAll() int
	InvalidateKind(kind models.Kind) int
}

// Recommender is the slice of the recommendation engine the API serves.
type Recommender interface {
	Recommend(ctx context.Context, userID string, limit int) (*recommend.Result, error)
	InvalidateUser(userID string) int
}

// Config holds HTTP server settings.
type Config struct {
	Host            string
	Port            int
	Timeout         time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// Server is the engine's HTTP surface. It implements suture.Service.
type Server struct {
	cfg       Config
	ranker    TrendingRanker
	engine    Recommender
	cacheStat *cache.Layer
	logger    zerolog.Logger
	handler   http.Handler
}

// NewServer wires the router and handlers.
func NewServer(cfg Config, ranker TrendingRanker, engine Recommender, layer *cache.Layer, logger zerolog.Logger) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.RateLimitReqs <= 0 {
		cfg.RateLimitReqs = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	s := &Server{
		cfg:       cfg,
		ranker:    ranker,
		engine:    engine,
		cacheStat: layer,
		logger:    logger,
	}
	s.handler = s.routes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes builds the chi router with the global middleware stack.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.recordMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))

		r.Get("/health", s.handleHealth)
		r.Get("/trending", s.handleTrending)
		r.Get("/recommendations/{userID}", s.handleRecommendations)
		r.Get("/cache/stats", s.handleCacheStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/invalidate", s.handleInvalidate)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve runs the HTTP server until the context is canceled, then shuts
// down gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  2 * s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

func (s *Server) String() string { return "api-server" }

// recordMetrics captures request counts and latency per route pattern.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, pattern, fmt.Sprintf("%d", ww.Status()), time.Since(start))
	})
}

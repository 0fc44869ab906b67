// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/encorehq/encore/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type invalidateRequest struct {
	Scope  string `json:"scope"`
	Kind   string `json:"kind,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type invalidateResponse struct {
	Scope   string `json:"scope"`
	Target  string `json:"target,omitempty"`
	Evicted int    `json:"evicted"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
}

// handleTrending serves GET /api/v1/trending?kind=&timeframe=&limit=.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	kind := models.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.KindShow
	}
	if !kind.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown kind: "+string(kind))
		return
	}

	timeframe := models.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = models.TimeframeWeek
	}
	if !timeframe.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown timeframe: "+string(timeframe))
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked, err := s.ranker.Trending(r.Context(), kind, timeframe, limit)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			s.writeError(w, http.StatusServiceUnavailable, "trending data temporarily unavailable")
			return
		}
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("trending request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"kind":      kind,
		"timeframe": timeframe,
		"items":     ranked,
	})
}

// handleRecommendations serves GET /api/v1/recommendations/{userID}?limit=.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Recommend(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			s.writeError(w, http.StatusServiceUnavailable, "recommendation data temporarily unavailable")
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("recommendation request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cacheStat == nil {
		s.writeError(w, http.StatusNotFound, "cache stats not available")
		return
	}
	s.writeJSON(w, http.StatusOK, s.cacheStat.Stats())
}

// handleInvalidate serves POST /api/v1/admin/invalidate. Scope selects
// what to drop: "trending" (optionally narrowed by kind), "user", or
// "all".
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var evicted int
	var target string
	switch req.Scope {
	case "trending":
		if req.Kind != "" {
			kind := models.Kind(req.Kind)
			if !kind.Valid() {
				s.writeError(w, http.StatusBadRequest, "unknown kind: "+req.Kind)
				return
			}
			evicted = s.ranker.InvalidateKind(kind)
			target = req.Kind
		} else {
			evicted = s.ranker.InvalidateAll()
		}
	case "user":
		if req.UserID == "" {
			s.writeError(w, http.StatusBadRequest, "scope \"user\" requires user_id")
			return
		}
		evicted = s.engine.InvalidateUser(req.UserID)
		target = req.UserID
	case "all":
		evicted = s.ranker.InvalidateAll()
	default:
		s.writeError(w, http.StatusBadRequest, "unknown scope: "+req.Scope)
		return
	}

	s.logger.Info().Str("scope", req.Scope).Str("target", target).Int("evicted", evicted).Msg("admin cache invalidation")
	s.writeJSON(w, http.StatusOK, invalidateResponse{Scope: req.Scope, Target: target, Evicted: evicted})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
	"github.com/encorehq/encore/internal/scoring"
)

// Source is the read interface the ranking pipelines consume. Implemented
// by *Client; tests substitute fakes.
type Source interface {
	// Candidates returns the ranking candidates of a kind, ordered by the
	// datastore's raw popularity, at most limit entries.
	Candidates(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]models.CandidateItem, error)

	// Popular returns the globally most popular items for cold-start
	// recommendations.
	Popular(ctx context.Context, limit int) ([]models.CandidateItem, error)

	// UserProfile returns the feature profile for a user, or
	// models.ErrProfileMissing when none exists.
	UserProfile(ctx context.Context, userID string) (*models.UserFeatureProfile, error)

	// BehaviorVectors returns the behavior embeddings of recently active
	// users for neighbor search.
	BehaviorVectors(ctx context.Context) ([]scoring.VectorEntry, error)

	// Engagements returns the IDs of items a user has engaged with
	// (votes, saves, attendance marks).
	Engagements(ctx context.Context, userID string) ([]string, error)
}

// Config holds client connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Client talks to the setlist datastore service that owns shows, artists,
// votes and user profiles. All calls are wrapped in a circuit breaker so
// a degraded datastore cannot stall the whole engine.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

const breakerName = "setlist-datastore"

// NewClient creates a datastore client. The circuit breaker opens after
// BreakerMaxFailures consecutive failures and probes again after
// BreakerTimeout.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	metrics.SetCircuitBreakerState(breakerName, 0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    breakerName,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// A 404 is a healthy response (the entity just does not exist)
		// and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateToInt(to))
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		logger:  logger,
	}
}

// Candidates implements Source.
func (c *Client) Candidates(ctx context.Context, kind models.Kind, timeframe models.Timeframe, limit int) ([]models.CandidateItem, error) {
	q := url.Values{}
	q.Set("kind", string(kind))
	q.Set("timeframe", string(timeframe))
	q.Set("limit", strconv.Itoa(limit))

	var items []models.CandidateItem
	if err := c.getJSON(ctx, "candidates", "/internal/v1/candidates", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Popular implements Source.
func (c *Client) Popular(ctx context.Context, limit int) ([]models.CandidateItem, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var items []models.CandidateItem
	if err := c.getJSON(ctx, "popular", "/internal/v1/popular", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UserProfile implements Source. A 404 maps to models.ErrProfileMissing
// so callers can branch to the cold-start path.
func (c *Client) UserProfile(ctx context.Context, userID string) (*models.UserFeatureProfile, error) {
	path := "/internal/v1/profiles/" + url.PathEscape(userID)

	var profile models.UserFeatureProfile
	if err := c.getJSON(ctx, "user_profile", path, nil, &profile); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, models.ErrProfileMissing)
		}
		return nil, err
	}
	return &profile, nil
}

// BehaviorVectors implements Source.
func (c *Client) BehaviorVectors(ctx context.Context) ([]scoring.VectorEntry, error) {
	var entries []scoring.VectorEntry
	if err := c.getJSON(ctx, "behavior_vectors", "/internal/v1/profiles/vectors", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Engagements implements Source.
func (c *Client) Engagements(ctx context.Context, userID string) ([]string, error) {
	path := "/internal/v1/users/" + url.PathEscape(userID) + "/engagements"

	var itemIDs []string
	if err := c.getJSON(ctx, "engagements", path, nil, &itemIDs); err != nil {
		return nil, err
	}
	return itemIDs, nil
}

// errNotFound distinguishes 404 responses inside the client; it never
// escapes getJSON callers unwrapped.
var errNotFound = errors.New("not found")

// getJSON performs a breaker-protected GET and decodes the JSON body
// into out. All failure modes map onto models.ErrDataUnavailable except
// 404, which surfaces as errNotFound for the caller to translate.
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	start := time.Now()

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})

	errType := ""
	defer func() {
		metrics.RecordProviderRequest(operation, time.Since(start), errType)
	}()

	if err != nil {
		switch {
		case errors.Is(err, errNotFound):
			errType = "not_found"
			return err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			errType = "breaker_open"
			return fmt.Errorf("%s: breaker open: %w", operation, models.ErrDataUnavailable)
		case errors.Is(err, context.DeadlineExceeded):
			errType = "timeout"
			return fmt.Errorf("%s: %v: %w", operation, err, models.ErrDataUnavailable)
		default:
			errType = "http"
			return fmt.Errorf("%s: %v: %w", operation, err, models.ErrDataUnavailable)
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		errType = "decode"
		return fmt.Errorf("%s: decode response: %v: %w", operation, err, models.ErrDataUnavailable)
	}
	return nil
}

// do executes one HTTP GET and returns the response body.
func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var _ Source = (*Client)(nil)

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package scoring

import (
	"math"
	"strings"

	"github.com/encorehq/encore/internal/models"
)

// Weights defines the relative contribution of each trending score term.
// The defaults are startup configuration, not load-bearing business logic;
// they can be overridden via the trending config section.
type Weights struct {
	// VoteActivity weighs voteCount x positiveRatio.
	VoteActivity float64 `json:"vote_activity" koanf:"vote_activity"`

	// Velocity weighs the recent voting rate.
	Velocity float64 `json:"velocity" koanf:"velocity"`

	// Popularity weighs ln(followers+1).
	Popularity float64 `json:"popularity" koanf:"popularity"`

	// Urgency weighs the event-proximity decay term.
	Urgency float64 `json:"urgency" koanf:"urgency"`
}

// DefaultWeights returns the default trending score weights.
func DefaultWeights() Weights {
	return Weights{
		VoteActivity: 0.4,
		Velocity:     0.3,
		Popularity:   0.2,
		Urgency:      0.1,
	}
}

// urgencyDecayRate controls how quickly the urgency term decays with the
// number of days until the event.
const urgencyDecayRate = 0.1

// TrendingScore computes the weighted trending score for an item.
//
// The score combines four terms:
//
//	activity   = voteCount x positiveRatio x w.VoteActivity
//	velocity   = voteVelocity x w.Velocity
//	popularity = ln(followers+1) x w.Popularity
//	urgency    = exp(-0.1 x max(1, daysUntilEvent)) x w.Urgency
//
// Past events are clamped to daysUntilEvent=1 so the urgency term
// saturates rather than exploding, and followers defaults to 1 so the log
// term is always finite. Items with zero votes still score above zero from
// the popularity and urgency terms, keeping new shows visible.
//
// The result is always finite and non-negative for well-formed inputs;
// callers should treat NaN/Inf results (malformed snapshots) as a
// compute failure and exclude the item.
func TrendingScore(item models.CandidateItem, w Weights) float64 {
	followers := item.Followers
	if followers < 1 {
		followers = 1
	}

	days := item.DaysUntilEvent
	if days < 1 {
		days = 1
	}

	activity := float64(item.VoteCount) * item.PositiveRatio * w.VoteActivity
	velocity := item.VoteVelocity * w.Velocity
	popularity := math.Log(float64(followers)+1) * w.Popularity
	urgency := math.Exp(-urgencyDecayRate*float64(days)) * w.Urgency

	return activity + velocity + popularity + urgency
}

// ValidScore reports whether a computed score is usable for ranking.
// NaN and infinite scores indicate a malformed candidate snapshot.
func ValidScore(score float64) bool {
	return !math.IsNaN(score) && !math.IsInf(score, 0)
}

// BoostRule configures the special-event boost predicate and factor.
type BoostRule struct {
	// Factor multiplies the base score when the predicate holds.
	// Must be >= 1.0 so the boost is monotonic.
	Factor float64 `json:"factor" koanf:"factor"`

	// WithinDays is the event-proximity horizon for the predicate.
	WithinDays int `json:"within_days" koanf:"within_days"`
}

// DefaultBoostRule returns the default special-event boost configuration.
func DefaultBoostRule() BoostRule {
	return BoostRule{
		Factor:     1.25,
		WithinDays: 14,
	}
}

// Applies reports whether the boost predicate holds for an item:
// a verified act with an event inside the configured horizon.
func (r BoostRule) Applies(item models.CandidateItem) bool {
	if !item.Verified {
		return false
	}
	if item.EventAt.IsZero() {
		return false
	}
	return item.DaysUntilEvent <= r.WithinDays
}

// SpecialEventBoost multiplies baseScore by the rule factor when the
// predicate holds, and returns it unchanged otherwise. The function is
// pure: reapplying with the same inputs yields the same output.
func SpecialEventBoost(item models.CandidateItem, baseScore float64, r BoostRule) float64 {
	if !r.Applies(item) {
		return baseScore
	}
	factor := r.Factor
	if factor < 1 {
		factor = 1
	}
	return baseScore * factor
}

// ContentMatchScore scores how well an item's genres match a user's genre
// preference weights. The score is the sum of matched preference weights
// divided by the item's genre count, so items whose genres are entirely
// inside the user's taste approach the user's average weight.
//
// Returns 0 when the item has no genres or none match. Genre comparison is
// case-insensitive.
func ContentMatchScore(item models.CandidateItem, preferences map[string]float64) float64 {
	if len(item.Genres) == 0 || len(preferences) == 0 {
		return 0
	}

	normalized := make(map[string]float64, len(preferences))
	for genre, weight := range preferences {
		normalized[strings.ToLower(genre)] = weight
	}

	var sum float64
	for _, genre := range item.Genres {
		if weight, ok := normalized[strings.ToLower(genre)]; ok {
			sum += weight
		}
	}

	return sum / float64(len(item.Genres))
}

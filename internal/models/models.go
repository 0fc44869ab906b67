// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package models

import (
	"fmt"
	"time"
)

// Kind identifies the type of entity being ranked.
type Kind string

const (
	// KindShow is a concert show with a predicted setlist.
	KindShow Kind = "show"
	// KindArtist is a performing artist.
	KindArtist Kind = "artist"
)

// Valid reports whether the kind is a known entity type.
func (k Kind) Valid() bool {
	return k == KindShow || k == KindArtist
}

// Tag returns the cache invalidation tag for a specific entity,
// e.g. "show:42" or "artist:7".
func (k Kind) Tag(id string) string {
	return fmt.Sprintf("%s:%s", k, id)
}

// Timeframe selects the window trending scores are computed over.
type Timeframe string

const (
	// TimeframeDay covers the last 24 hours.
	TimeframeDay Timeframe = "day"
	// TimeframeWeek covers the last 7 days.
	TimeframeWeek Timeframe = "week"
	// TimeframeMonth covers the last 30 days.
	TimeframeMonth Timeframe = "month"
)

// Valid reports whether the timeframe is a known window.
func (t Timeframe) Valid() bool {
	return t == TimeframeDay || t == TimeframeWeek || t == TimeframeMonth
}

// Duration returns the wall-clock length of the timeframe window.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case TimeframeDay:
		return 24 * time.Hour
	case TimeframeMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// CandidateItem is an immutable snapshot of an artist or show being ranked.
// It is re-fetched from the external store per request or cache miss and is
// never mutated by the engine.
type CandidateItem struct {
	// ID is the entity identifier in the external store.
	ID string `json:"id"`

	// Kind is the entity type (show or artist).
	Kind Kind `json:"kind"`

	// Name is the display name (artist name or show title).
	Name string `json:"name"`

	// Followers is the artist follower count (0 for unknown).
	Followers int64 `json:"followers"`

	// VoteCount is the total number of setlist votes received.
	VoteCount int64 `json:"vote_count"`

	// PositiveRatio is the fraction of votes that are upvotes (0..1).
	PositiveRatio float64 `json:"positive_ratio"`

	// VoteVelocity is the recent voting rate in votes per hour.
	VoteVelocity float64 `json:"vote_velocity"`

	// DaysUntilEvent is the number of days until the show date.
	// Zero or negative values indicate a past or same-day event.
	DaysUntilEvent int `json:"days_until_event"`

	// Genres is the list of genre tags attached to the entity.
	Genres []string `json:"genres,omitempty"`

	// Verified indicates a verified artist account.
	Verified bool `json:"verified"`

	// CreatedAt is when the entity was created in the external store.
	CreatedAt time.Time `json:"created_at"`

	// EventAt is the show date (zero for artists).
	EventAt time.Time `json:"event_at,omitempty"`
}

// ActivityLevel buckets a user's recent engagement.
type ActivityLevel string

const (
	ActivityInactive ActivityLevel = "inactive"
	ActivityLow      ActivityLevel = "low"
	ActivityMedium   ActivityLevel = "medium"
	ActivityHigh     ActivityLevel = "high"
)

// UserFeatureProfile is the per-user feature snapshot built by an external
// ETL collaborator. The engine only reads it.
type UserFeatureProfile struct {
	// UserID is the profile owner.
	UserID string `json:"user_id"`

	// GenreWeights maps genre name to preference weight in [0,1].
	GenreWeights map[string]float64 `json:"genre_weights"`

	// BehaviorVector is a fixed-length numeric embedding used for
	// cosine-similarity neighbor search.
	BehaviorVector []float64 `json:"behavior_vector"`

	// ActivityLevel buckets recent engagement.
	ActivityLevel ActivityLevel `json:"activity_level"`

	// PredictionConfidence estimates how reliable the profile is (0..1).
	PredictionConfidence float64 `json:"prediction_confidence"`
}

// RecommendationSource identifies which pipeline stage produced a
// recommendation.
type RecommendationSource string

const (
	// SourceContent marks content-based (genre match) recommendations.
	SourceContent RecommendationSource = "content"
	// SourceCollaborative marks neighbor-derived recommendations.
	SourceCollaborative RecommendationSource = "collaborative"
	// SourcePopular marks cold-start popularity recommendations.
	SourcePopular RecommendationSource = "popular"
)

// Recommendation is a single ranked suggestion returned to the caller.
type Recommendation struct {
	// ItemID identifies the recommended entity.
	ItemID string `json:"item_id"`

	// Kind is the entity type.
	Kind Kind `json:"kind"`

	// Score is the final ranking score in [0,1].
	Score float64 `json:"score"`

	// Confidence estimates recommendation reliability in [0,1].
	Confidence float64 `json:"confidence"`

	// Reason is a human-readable explanation derived from the dominant
	// source, e.g. "matches your taste in indie rock".
	Reason string `json:"reason"`

	// Source is the pipeline stage that produced the recommendation.
	Source RecommendationSource `json:"source"`
}

// VoteDelta carries the up/down components of a vote event.
type VoteDelta struct {
	Up   int `json:"up"`
	Down int `json:"down"`
}

// VoteSignal is a single vote-cast event delivered by the external event
// channel. It is consumed immediately by the aggregator and never stored;
// the system of record for raw votes is an external collaborator.
type VoteSignal struct {
	// EventID uniquely identifies the event for tracing.
	EventID string `json:"event_id,omitempty"`

	// SetlistSongID is the voted song entry.
	SetlistSongID string `json:"setlist_song_id"`

	// ShowID is the show the setlist belongs to.
	ShowID string `json:"show_id"`

	// ArtistID is the performing artist.
	ArtistID string `json:"artist_id"`

	// Delta is the vote change (up/down counts, usually one of them 1).
	Delta VoteDelta `json:"delta"`

	// At is when the vote was cast.
	At time.Time `json:"at"`
}

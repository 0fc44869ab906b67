// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package scoring

import (
	"math"
	"sort"
)

// VectorEntry pairs an identifier with its behavior vector for
// nearest-neighbor search.
type VectorEntry struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
}

// Neighbor is a nearest-neighbor search result.
type Neighbor struct {
	// ID identifies the matched entry (typically a user id).
	ID string `json:"id"`

	// Similarity is the cosine similarity to the target vector.
	Similarity float64 `json:"similarity"`
}

// Cosine computes the cosine similarity between two vectors.
//
// Returns 0 (not an error) when the vectors differ in length or either has
// zero magnitude. Callers must treat 0 as "no information", never as a
// failure.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// NearestNeighbors finds the candidates most similar to the target vector.
//
// Candidates below threshold are dropped, the rest are sorted descending
// by similarity and truncated to k. Ties are broken by ascending ID so
// results are deterministic for identical inputs.
func NearestNeighbors(target []float64, candidates []VectorEntry, k int, threshold float64) []Neighbor {
	if k <= 0 || len(candidates) == 0 {
		return []Neighbor{}
	}

	neighbors := make([]Neighbor, 0, len(candidates))
	for _, c := range candidates {
		sim := Cosine(target, c.Vector)
		if sim < threshold {
			continue
		}
		neighbors = append(neighbors, Neighbor{ID: c.ID, Similarity: sim})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].ID < neighbors[j].ID
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	return neighbors
}

// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package scoring

import (
	"math"
	"testing"
)

func TestCosineSelfSimilarity(t *testing.T) {
	vectors := [][]float64{
		{1, 0, 0},
		{0.3, 0.7, 0.1},
		{-2, 5, 3, 1},
	}

	for _, v := range vectors {
		if got := Cosine(v, v); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("Cosine(v, v) = %v, want 1.0 for %v", got, v)
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	zero := []float64{0, 0, 0}
	v := []float64{1, 2, 3}

	if got := Cosine(zero, v); got != 0 {
		t.Errorf("Cosine(zero, v) = %v, want 0", got)
	}
	if got := Cosine(v, zero); got != 0 {
		t.Errorf("Cosine(v, zero) = %v, want 0", got)
	}
	if got := Cosine(zero, zero); got != 0 {
		t.Errorf("Cosine(zero, zero) = %v, want 0", got)
	}
}

func TestCosineLengthMismatch(t *testing.T) {
	if got := Cosine([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("Cosine with mismatched lengths = %v, want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("Cosine(nil, nil) = %v, want 0", got)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	if got := Cosine([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal similarity = %v, want 0", got)
	}
}

func TestNearestNeighborsOrderingAndTruncation(t *testing.T) {
	target := []float64{1, 0}
	candidates := []VectorEntry{
		{ID: "far", Vector: []float64{0, 1}},         // sim 0
		{ID: "close", Vector: []float64{1, 0.1}},     // sim ~0.995
		{ID: "exact", Vector: []float64{2, 0}},       // sim 1
		{ID: "diagonal", Vector: []float64{1, 1}},    // sim ~0.707
		{ID: "opposite", Vector: []float64{-1, 0.1}}, // sim ~-0.995
	}

	got := NearestNeighbors(target, candidates, 2, 0.5)
	if len(got) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got))
	}
	if got[0].ID != "exact" || got[1].ID != "close" {
		t.Errorf("order = [%s, %s], want [exact, close]", got[0].ID, got[1].ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("results not sorted descending at index %d", i)
		}
	}
}

func TestNearestNeighborsThreshold(t *testing.T) {
	target := []float64{1, 0}
	candidates := []VectorEntry{
		{ID: "a", Vector: []float64{1, 0}},
		{ID: "b", Vector: []float64{0, 1}},
	}

	got := NearestNeighbors(target, candidates, 10, 0.9)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %v, want only candidate a above threshold", got)
	}
}

func TestNearestNeighborsTieBreakByID(t *testing.T) {
	target := []float64{1, 0}
	// Both candidates have identical similarity; "alpha" must sort first.
	candidates := []VectorEntry{
		{ID: "beta", Vector: []float64{3, 0}},
		{ID: "alpha", Vector: []float64{2, 0}},
	}

	got := NearestNeighbors(target, candidates, 2, 0)
	if len(got) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "beta" {
		t.Errorf("tie-break order = [%s, %s], want [alpha, beta]", got[0].ID, got[1].ID)
	}
}

func TestNearestNeighborsDegenerate(t *testing.T) {
	if got := NearestNeighbors([]float64{1}, nil, 5, 0); len(got) != 0 {
		t.Errorf("nil candidates: got %v, want empty", got)
	}
	if got := NearestNeighbors([]float64{1}, []VectorEntry{{ID: "a", Vector: []float64{1}}}, 0, 0); len(got) != 0 {
		t.Errorf("k=0: got %v, want empty", got)
	}
}

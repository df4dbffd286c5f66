package decision

import (
	"math"
	"sort"
	"time"
)

// Limits on candidates per decision.
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = MaxLimit
)

// ClampLimit applies the default and bounds to a requested candidate count.
func ClampLimit(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	return max(MinLimit, min(MaxLimit, *limit))
}

// Rank sorts scored items in place: score descending, then updatedAt
// descending, then createdAt descending, then id ascending. Zero
// timestamps sort after set ones.
func Rank(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if c := compareTimeDesc(a.Item.UpdatedAt, b.Item.UpdatedAt); c != 0 {
			return c < 0
		}
		if c := compareTimeDesc(a.Item.CreatedAt, b.Item.CreatedAt); c != 0 {
			return c < 0
		}
		return a.Item.ID < b.Item.ID
	})
}

// compareTimeDesc orders newer first with zero values last.
func compareTimeDesc(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	case a.After(b):
		return -1
	case a.Before(b):
		return 1
	}
	return 0
}

// Softmax converts scores into confidences that sum to 1. The maximum is
// subtracted before exponentiating. A degenerate sum falls back to a
// uniform distribution.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}

	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}

	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		uniform := 1.0 / float64(len(scores))
		for i := range out {
			out[i] = uniform
		}
		return out
	}

	for i := range out {
		out[i] /= sum
	}
	return out
}

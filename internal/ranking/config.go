package ranking

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
)

// Weights are the signed deltas of each scoring term.
type Weights struct {
	Base float64 `json:"base"` // Starting score of every item (default: 1.0)

	WithinBudget float64 `json:"within_budget"` // Price at or under the effective budget (default: 1.2)
	OverBudget   float64 `json:"over_budget"`   // Price above the effective budget (default: -0.8)

	MustTagMatch float64 `json:"must_tag_match"` // Per matched must-have tag (default: 0.7)
	MustTagMiss  float64 `json:"must_tag_miss"`  // Flat, when no must-have tag matches (default: -0.4)

	HardAvoid    float64 `json:"hard_avoid"`    // Per dietary/allergen tag hit (default: -5.0)
	ProfileAvoid float64 `json:"profile_avoid"` // Per profile avoid tag hit (default: -3.0)
	RequestAvoid float64 `json:"request_avoid"` // Per request avoid tag hit (default: -1.5)

	QueryToken float64 `json:"query_token"` // Per query token found in the haystack (default: 0.5)

	LearnedRestaurant float64 `json:"learned_restaurant"` // Times the learned restaurant weight (default: 0.25)
	LearnedTag        float64 `json:"learned_tag"`        // Times the summed learned tag weights (default: 0.15)
	PriceSensitivity  float64 `json:"price_sensitivity"`  // Times the price penalty, over budget only (default: -0.2)

	PreferredRestaurant float64 `json:"preferred_restaurant"` // Profile preferred restaurant (default: 0.8)
	AvoidedRestaurant   float64 `json:"avoided_restaurant"`   // Profile avoided restaurant (default: -1.2)
	PreferredTag        float64 `json:"preferred_tag"`        // Per profile preferred tag hit (default: 0.6)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// MinQueryTokenLength is the shortest query token that counts as a match.
const MinQueryTokenLength = 3

// DefaultWeights returns the reference scoring weights.
func DefaultWeights() *Weights {
	return &Weights{
		Base:                1.0,
		WithinBudget:        1.2,
		OverBudget:          -0.8,
		MustTagMatch:        0.7,
		MustTagMiss:         -0.4,
		HardAvoid:           -5.0,
		ProfileAvoid:        -3.0,
		RequestAvoid:        -1.5,
		QueryToken:          0.5,
		LearnedRestaurant:   0.25,
		LearnedTag:          0.15,
		PriceSensitivity:    -0.2,
		PreferredRestaurant: 0.8,
		AvoidedRestaurant:   -1.2,
		PreferredTag:        0.6,
	}
}

type namedWeight struct {
	name string
	v    *float64
}

func (w *Weights) named() []namedWeight {
	return []namedWeight{
		{"base", &w.Base},
		{"within_budget", &w.WithinBudget},
		{"over_budget", &w.OverBudget},
		{"must_tag_match", &w.MustTagMatch},
		{"must_tag_miss", &w.MustTagMiss},
		{"hard_avoid", &w.HardAvoid},
		{"profile_avoid", &w.ProfileAvoid},
		{"request_avoid", &w.RequestAvoid},
		{"query_token", &w.QueryToken},
		{"learned_restaurant", &w.LearnedRestaurant},
		{"learned_tag", &w.LearnedTag},
		{"price_sensitivity", &w.PriceSensitivity},
		{"preferred_restaurant", &w.PreferredRestaurant},
		{"avoided_restaurant", &w.AvoidedRestaurant},
		{"preferred_tag", &w.PreferredTag},
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// An empty path yields the defaults. On read or parse failure the defaults
// are returned together with the error, so callers can keep serving.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration returns base with every non-zero term of override applied.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}

	result := *base
	if override == nil {
		return &result
	}

	dst := result.named()
	for i, src := range override.named() {
		if *src.v != 0 {
			*dst[i].v = *src.v
		}
	}
	return &result
}

func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	before := defaults.named()
	for i, after := range loaded.named() {
		if *after.v != *before[i].v {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", after.name, *before[i].v, *after.v))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded scoring calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded scoring calibration (using all defaults)")
	}
}

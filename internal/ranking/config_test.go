package ranking

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"base", w.Base, 1.0},
		{"within budget", w.WithinBudget, 1.2},
		{"over budget", w.OverBudget, -0.8},
		{"must tag match", w.MustTagMatch, 0.7},
		{"must tag miss", w.MustTagMiss, -0.4},
		{"hard avoid", w.HardAvoid, -5.0},
		{"profile avoid", w.ProfileAvoid, -3.0},
		{"request avoid", w.RequestAvoid, -1.5},
		{"query token", w.QueryToken, 0.5},
		{"learned restaurant", w.LearnedRestaurant, 0.25},
		{"learned tag", w.LearnedTag, 0.15},
		{"price sensitivity", w.PriceSensitivity, -0.2},
		{"preferred restaurant", w.PreferredRestaurant, 0.8},
		{"avoided restaurant", w.AvoidedRestaurant, -1.2},
		{"preferred tag", w.PreferredTag, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestLoadCalibration_EmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if *w != *DefaultWeights() {
		t.Errorf("expected defaults, got %+v", w)
	}
}

func TestLoadCalibration_MissingFile(t *testing.T) {
	w, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Error("expected error for missing file")
	}
	if *w != *DefaultWeights() {
		t.Error("expected defaults when file is missing")
	}
}

func TestLoadCalibration_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err == nil {
		t.Error("expected parse error")
	}
	if *w != *DefaultWeights() {
		t.Error("expected defaults on parse error")
	}
}

func TestLoadCalibration_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	body := `{"version":"1","weights":{"within_budget":1.5,"hard_avoid":-6}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.WithinBudget != 1.5 {
		t.Errorf("expected within_budget 1.5, got %v", w.WithinBudget)
	}
	if w.HardAvoid != -6 {
		t.Errorf("expected hard_avoid -6, got %v", w.HardAvoid)
	}
	if w.OverBudget != -0.8 {
		t.Errorf("expected over_budget to keep default -0.8, got %v", w.OverBudget)
	}
}

func TestMergeCalibration_NilInputs(t *testing.T) {
	if got := MergeCalibration(nil, &Weights{Base: 2}); *got != *DefaultWeights() {
		t.Errorf("nil base should yield defaults, got %+v", got)
	}

	base := DefaultWeights()
	got := MergeCalibration(base, nil)
	if *got != *base {
		t.Errorf("nil override should copy base, got %+v", got)
	}
	if got == base {
		t.Error("expected a copy, got the same pointer")
	}
}

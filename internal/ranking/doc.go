// Package ranking holds the calibrated weights of the meal scoring
// heuristic.
//
// Every scoring term is a signed delta added to the item's running score.
// The defaults reproduce the reference behaviour, and a JSON calibration
// file loaded at startup can override individual terms:
//
//	weights, err := ranking.LoadCalibration(cfg.ScoringCalibrationPath)
//	if err != nil {
//		slog.Warn("using default scoring weights", "error", err)
//	}
//	engine := decision.NewScoringEngine(weights)
//
// A calibration file looks like:
//
//	{
//	  "version": "1",
//	  "weights": { "within_budget": 1.5, "hard_avoid": -6 }
//	}
//
// Absent or zero-valued entries keep their default, so partial files are
// fine. A term cannot be switched off through calibration.
package ranking

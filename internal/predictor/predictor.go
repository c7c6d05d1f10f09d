// Package predictor infers near-future crowd conditions from a bounded
// sliding window of recent assessments.
package predictor

import (
	"fmt"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/models"
)

// HistoryWindow is the number of newest records considered. Older history is
// ignored; the bound is part of the contract, not configuration.
const HistoryWindow = 5

// PredictedState is the forward-looking assessment for the next window.
// Derived, never persisted on its own.
type PredictedState struct {
	DensityIncreasing  bool            `json:"crowd_density_increase"`
	RestrictedMovement bool            `json:"restricted_movements"`
	FireOrSmoke        bool            `json:"fire_smoke_detected"`
	RecommendedUnit    models.UnitType `json:"unit_to_dispatch"`
	Rationale          string          `json:"recommendations"`
	Summary            string          `json:"summary"`
}

// Quiescent is the state returned when no history is available.
func Quiescent() PredictedState {
	return PredictedState{
		RecommendedUnit: models.UnitNone,
		Rationale:       "No immediate action required.",
		Summary:         "No recent assessment data available.",
	}
}

// Predict evaluates the newest HistoryWindow records and returns the
// predicted state for the next window. Records are sorted chronologically
// first; arrival order is not trusted. Never fails: empty history yields the
// quiescent state.
func Predict(history []analysis.AssessmentRecord) PredictedState {
	if len(history) == 0 {
		return Quiescent()
	}

	records := make([]analysis.AssessmentRecord, len(history))
	copy(records, history)
	analysis.SortChronological(records)
	records = analysis.Newest(records, HistoryWindow)

	oldest := records[0]
	newest := records[len(records)-1]

	state := PredictedState{
		DensityIncreasing:  newest.CrowdDensity > oldest.CrowdDensity,
		RestrictedMovement: newest.CrowdFlow != analysis.FlowUnrestricted,
	}
	for _, rec := range records {
		if rec.FireSmokeDetected {
			state.FireOrSmoke = true
			break
		}
	}

	state.RecommendedUnit, state.Rationale = recommendUnit(records, newest, state)
	state.Summary = summarize(newest, state)
	return state
}

// recommendUnit applies the dispatch rules in order; first match wins.
func recommendUnit(records []analysis.AssessmentRecord, newest analysis.AssessmentRecord, state PredictedState) (models.UnitType, string) {
	if state.FireOrSmoke {
		return models.UnitFire, "Fire or smoke detected in a recent window; dispatch a fire team immediately."
	}
	if newest.SafetyLevel == analysis.SafetyCritical && newest.CrowdFlow == analysis.FlowSeverelyRestricted {
		return models.UnitMedical, "Critical safety level with severely restricted movement indicates stampede risk; stage a medical unit."
	}
	if state.DensityIncreasing &&
		(newest.CrowdFlow == analysis.FlowModeratelyRestricted || newest.CrowdFlow == analysis.FlowSeverelyRestricted) {
		return models.UnitPolice, "Crowd density is rising while movement is restricted; deploy a police unit for crowd control."
	}
	return models.UnitNone, "No immediate action required."
}

func summarize(newest analysis.AssessmentRecord, state PredictedState) string {
	trend := "stable"
	if state.DensityIncreasing {
		trend = "increasing"
	}
	return fmt.Sprintf("Crowd density %s (%s), flow %s, safety level %s.",
		trend, newest.CrowdDensity, newest.CrowdFlow, newest.SafetyLevel)
}

package predictor

import (
	"testing"
	"time"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/segmenter"
)

func record(endOffset time.Duration, density analysis.CrowdDensity, flow analysis.CrowdFlow, level analysis.SafetyLevel, fire bool) analysis.AssessmentRecord {
	base := time.Date(2025, 7, 27, 4, 13, 0, 0, time.UTC)
	return analysis.AssessmentRecord{
		Window:            segmenter.TimeWindow{EndUTC: base.Add(endOffset)},
		CrowdDensity:      density,
		CrowdFlow:         flow,
		SafetyLevel:       level,
		FireSmokeDetected: fire,
	}
}

func TestPredict_EmptyHistoryIsQuiescent(t *testing.T) {
	state := Predict(nil)

	if state.RecommendedUnit != models.UnitNone {
		t.Errorf("expected no unit, got %v", state.RecommendedUnit)
	}
	if state.DensityIncreasing || state.RestrictedMovement || state.FireOrSmoke {
		t.Error("expected all booleans false with no history")
	}
}

func TestPredict_FireSmokeAlwaysWins(t *testing.T) {
	// Fire in the oldest record, everything else calm and improving.
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensitySevere, analysis.FlowSeverelyRestricted, analysis.SafetyCritical, true),
		record(2*time.Second, analysis.DensityLow, analysis.FlowUnrestricted, analysis.SafetySafe, false),
		record(3*time.Second, analysis.DensityLow, analysis.FlowUnrestricted, analysis.SafetySafe, false),
	}

	state := Predict(history)
	if state.RecommendedUnit != models.UnitFire {
		t.Errorf("expected fire unit, got %v", state.RecommendedUnit)
	}
	if !state.FireOrSmoke {
		t.Error("expected FireOrSmoke true")
	}
}

func TestPredict_StampedeRiskRecommendsMedical(t *testing.T) {
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensityHigh, analysis.FlowModeratelyRestricted, analysis.SafetyHighRisk, false),
		record(2*time.Second, analysis.DensitySevere, analysis.FlowSeverelyRestricted, analysis.SafetyCritical, false),
	}

	state := Predict(history)
	if state.RecommendedUnit != models.UnitMedical {
		t.Errorf("expected medical unit, got %v", state.RecommendedUnit)
	}
}

func TestPredict_RisingDensityRecommendsPolice(t *testing.T) {
	// Oldest high, newest severe, restricted flow, no fire: Scenario B.
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensityHigh, analysis.FlowModeratelyRestricted, analysis.SafetyHighRisk, false),
		record(2*time.Second, analysis.DensitySevere, analysis.FlowModeratelyRestricted, analysis.SafetyHighRisk, false),
	}

	state := Predict(history)
	if state.RecommendedUnit != models.UnitPolice {
		t.Errorf("expected police unit, got %v", state.RecommendedUnit)
	}
	if !state.DensityIncreasing {
		t.Error("expected DensityIncreasing true")
	}
	if !state.RestrictedMovement {
		t.Error("expected RestrictedMovement true")
	}
}

func TestPredict_CalmHistoryRecommendsNothing(t *testing.T) {
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensityMedium, analysis.FlowUnrestricted, analysis.SafetySafe, false),
		record(2*time.Second, analysis.DensityMedium, analysis.FlowUnrestricted, analysis.SafetySafe, false),
	}

	state := Predict(history)
	if state.RecommendedUnit != models.UnitNone {
		t.Errorf("expected no unit, got %v", state.RecommendedUnit)
	}
}

func TestPredict_RisingDensityWithFreeFlowIsNotPolice(t *testing.T) {
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensityLow, analysis.FlowUnrestricted, analysis.SafetySafe, false),
		record(2*time.Second, analysis.DensityHigh, analysis.FlowUnrestricted, analysis.SafetyModerateRisk, false),
	}

	state := Predict(history)
	if state.RecommendedUnit != models.UnitNone {
		t.Errorf("density rise without restricted flow must not dispatch, got %v", state.RecommendedUnit)
	}
	if !state.DensityIncreasing {
		t.Error("expected DensityIncreasing true")
	}
	if state.RestrictedMovement {
		t.Error("expected RestrictedMovement false")
	}
}

func TestPredict_OnlyNewestFiveConsidered(t *testing.T) {
	// Six records: the oldest has fire, but it falls outside the window of 5.
	history := []analysis.AssessmentRecord{
		record(1*time.Second, analysis.DensityLow, analysis.FlowUnrestricted, analysis.SafetySafe, true),
	}
	for i := 2; i <= 6; i++ {
		history = append(history,
			record(time.Duration(i)*time.Second, analysis.DensityLow, analysis.FlowUnrestricted, analysis.SafetySafe, false))
	}

	state := Predict(history)
	if state.FireOrSmoke {
		t.Error("fire outside the 5-record window must be ignored")
	}
	if state.RecommendedUnit != models.UnitNone {
		t.Errorf("expected no unit, got %v", state.RecommendedUnit)
	}
}

func TestPredict_SortsOutOfOrderArrivals(t *testing.T) {
	// Newest (severe, restricted) arrives first; oldest (high) arrives last.
	history := []analysis.AssessmentRecord{
		record(5*time.Second, analysis.DensitySevere, analysis.FlowModeratelyRestricted, analysis.SafetyHighRisk, false),
		record(1*time.Second, analysis.DensityHigh, analysis.FlowModeratelyRestricted, analysis.SafetyHighRisk, false),
	}

	state := Predict(history)
	if !state.DensityIncreasing {
		t.Error("expected DensityIncreasing true after chronological sort")
	}
	if state.RecommendedUnit != models.UnitPolice {
		t.Errorf("expected police unit, got %v", state.RecommendedUnit)
	}

	// The input slice must not be reordered.
	if history[0].CrowdDensity != analysis.DensitySevere {
		t.Error("Predict must not mutate the caller's history slice")
	}
}

package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crowd-safety-service/internal/segmenter"
)

// ErrMalformedAnalysis means no JSON object could be extracted from the
// analyzer output. Treated as a missing data point, not fatal to the session.
var ErrMalformedAnalysis = errors.New("no JSON object extractable from analyzer output")

// ValidationError reports a raw assessment that cannot cross into the core's
// enums. The offending record is dropped; processing continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid assessment field %q: %s", e.Field, e.Reason)
}

// rawAssessment is the analyzer's loosely-typed source shape. Yes/no strings
// and nullable counts never leave this package.
type rawAssessment struct {
	CrowdDensity           *string `json:"crowd_density"`
	CrowdFlow              *string `json:"crowd_flow"`
	EstimatedCount         *int    `json:"estimated_count"`
	FireSmokeDetected      *string `json:"fire_smoke_detected"`
	CongestedEntryExits    *string `json:"congested_entry_exits"`
	SafetyLevel            *string `json:"safety_level"`
	NeedsIntervention      *string `json:"needs_security_intervention"`
	AdditionalObservations string  `json:"additional_observations"`
}

// StripFences removes a markdown code fence wrapper, if present, and returns
// the inner payload. Models routinely wrap their JSON in ```json fences.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseRecord converts raw analyzer output into a validated AssessmentRecord
// for the given window. Returns ErrMalformedAnalysis when no JSON object is
// present and a *ValidationError when a required field is missing or outside
// its enum.
func ParseRecord(raw string, window segmenter.TimeWindow) (AssessmentRecord, error) {
	payload := StripFences(raw)
	start := strings.IndexByte(payload, '{')
	end := strings.LastIndexByte(payload, '}')
	if start < 0 || end <= start {
		return AssessmentRecord{}, ErrMalformedAnalysis
	}

	var src rawAssessment
	if err := json.Unmarshal([]byte(payload[start:end+1]), &src); err != nil {
		return AssessmentRecord{}, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	return normalize(src, window)
}

func normalize(src rawAssessment, window segmenter.TimeWindow) (AssessmentRecord, error) {
	rec := AssessmentRecord{Window: window, Notes: strings.TrimSpace(src.AdditionalObservations)}

	density, err := parseDensity(src.CrowdDensity)
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.CrowdDensity = density

	flow, err := parseFlow(src.CrowdFlow)
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.CrowdFlow = flow

	level, err := parseSafetyLevel(src.SafetyLevel)
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.SafetyLevel = level

	fire, err := parseYesNo(src.FireSmokeDetected, "fire_smoke_detected")
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.FireSmokeDetected = fire

	congested, err := parseYesNo(src.CongestedEntryExits, "congested_entry_exits")
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.CongestedExits = congested

	needs, err := parseYesNo(src.NeedsIntervention, "needs_security_intervention")
	if err != nil {
		return AssessmentRecord{}, err
	}
	rec.NeedsIntervention = needs

	if src.EstimatedCount != nil {
		if *src.EstimatedCount < 0 {
			return AssessmentRecord{}, &ValidationError{Field: "estimated_count", Reason: "must not be negative"}
		}
		rec.EstimatedCount = *src.EstimatedCount
		rec.HasEstimatedCount = true
	}
	return rec, nil
}

func parseDensity(v *string) (CrowdDensity, error) {
	if v == nil {
		return 0, &ValidationError{Field: "crowd_density", Reason: "missing"}
	}
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "low":
		return DensityLow, nil
	case "medium", "moderate":
		return DensityMedium, nil
	case "high":
		return DensityHigh, nil
	case "severe":
		return DensitySevere, nil
	default:
		return 0, &ValidationError{Field: "crowd_density", Reason: fmt.Sprintf("unknown value %q", *v)}
	}
}

func parseFlow(v *string) (CrowdFlow, error) {
	if v == nil {
		return 0, &ValidationError{Field: "crowd_flow", Reason: "missing"}
	}
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "unrestricted", "free":
		return FlowUnrestricted, nil
	case "moderately_restricted", "restricted":
		return FlowModeratelyRestricted, nil
	case "severely_restricted":
		return FlowSeverelyRestricted, nil
	default:
		return 0, &ValidationError{Field: "crowd_flow", Reason: fmt.Sprintf("unknown value %q", *v)}
	}
}

func parseSafetyLevel(v *string) (SafetyLevel, error) {
	if v == nil {
		return 0, &ValidationError{Field: "safety_level", Reason: "missing"}
	}
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "safe":
		return SafetySafe, nil
	case "moderate_risk":
		return SafetyModerateRisk, nil
	case "high_risk":
		return SafetyHighRisk, nil
	case "critical":
		return SafetyCritical, nil
	default:
		return 0, &ValidationError{Field: "safety_level", Reason: fmt.Sprintf("unknown value %q", *v)}
	}
}

func parseYesNo(v *string, field string) (bool, error) {
	if v == nil {
		return false, &ValidationError{Field: field, Reason: "missing"}
	}
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	default:
		return false, &ValidationError{Field: field, Reason: fmt.Sprintf("expected yes/no, got %q", *v)}
	}
}

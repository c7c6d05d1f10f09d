// Package analysis defines the per-window safety assessment record and the
// parse-and-normalize boundary for raw analyzer output.
package analysis

import (
	"sort"

	"crowd-safety-service/internal/segmenter"
)

// CrowdDensity is the ordinal crowd density scale.
type CrowdDensity int

const (
	DensityLow CrowdDensity = iota
	DensityMedium
	DensityHigh
	DensitySevere
)

func (d CrowdDensity) String() string {
	switch d {
	case DensityLow:
		return "low"
	case DensityMedium:
		return "medium"
	case DensityHigh:
		return "high"
	case DensitySevere:
		return "severe"
	default:
		return "unknown"
	}
}

// CrowdFlow describes how freely the crowd can move.
type CrowdFlow int

const (
	FlowUnrestricted CrowdFlow = iota
	FlowModeratelyRestricted
	FlowSeverelyRestricted
)

func (f CrowdFlow) String() string {
	switch f {
	case FlowUnrestricted:
		return "unrestricted"
	case FlowModeratelyRestricted:
		return "moderately_restricted"
	case FlowSeverelyRestricted:
		return "severely_restricted"
	default:
		return "unknown"
	}
}

// SafetyLevel is the analyzer's overall judgment for one window.
type SafetyLevel int

const (
	SafetySafe SafetyLevel = iota
	SafetyModerateRisk
	SafetyHighRisk
	SafetyCritical
)

func (s SafetyLevel) String() string {
	switch s {
	case SafetySafe:
		return "safe"
	case SafetyModerateRisk:
		return "moderate_risk"
	case SafetyHighRisk:
		return "high_risk"
	case SafetyCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AssessmentRecord is one window's validated safety evaluation.
// Immutable once accepted; ordered by Window.EndUTC.
type AssessmentRecord struct {
	Window            segmenter.TimeWindow
	CrowdDensity      CrowdDensity
	CrowdFlow         CrowdFlow
	EstimatedCount    int
	HasEstimatedCount bool
	FireSmokeDetected bool
	CongestedExits    bool
	SafetyLevel       SafetyLevel
	NeedsIntervention bool
	Notes             string
}

// SortChronological orders records oldest to newest by window end. Arrival
// order is not trusted; chunk results may be reordered in transit.
func SortChronological(records []AssessmentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Window.EndUTC.Before(records[j].Window.EndUTC)
	})
}

// Newest returns up to n newest records from an already-sorted slice,
// preserving oldest-to-newest order.
func Newest(records []AssessmentRecord, n int) []AssessmentRecord {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

package analysis

import (
	"fmt"
	"time"

	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/segmenter"
)

// RecordToDocument flattens a validated record back into the loosely-typed
// document shape the event store persists.
func RecordToDocument(rec AssessmentRecord, id, chunkPath string) models.EventDocument {
	doc := models.EventDocument{
		ID:                     id,
		ChunkPath:              chunkPath,
		StartTime:              rec.Window.StartOffset.Seconds(),
		EndTime:                rec.Window.EndOffset.Seconds(),
		StartUTCTime:           rec.Window.StartUTC.UTC().Format(time.RFC3339Nano),
		EndUTCTime:             rec.Window.EndUTC.UTC().Format(time.RFC3339Nano),
		CrowdDensity:           rec.CrowdDensity.String(),
		CrowdFlow:              rec.CrowdFlow.String(),
		FireSmokeDetected:      yesNo(rec.FireSmokeDetected),
		CongestedEntryExits:    yesNo(rec.CongestedExits),
		SafetyLevel:            rec.SafetyLevel.String(),
		NeedsIntervention:      yesNo(rec.NeedsIntervention),
		AdditionalObservations: rec.Notes,
	}
	if rec.HasEstimatedCount {
		count := rec.EstimatedCount
		doc.EstimatedCount = &count
	}
	return doc
}

// RecordFromDocument validates a stored event document back into an
// AssessmentRecord. Documents written by older pipelines may carry invalid
// values; they fail with the same ValidationError as fresh analyzer output.
func RecordFromDocument(doc models.EventDocument) (AssessmentRecord, error) {
	startUTC, err := parseUTC(doc.StartUTCTime)
	if err != nil {
		return AssessmentRecord{}, &ValidationError{Field: "start_utc_time", Reason: err.Error()}
	}
	endUTC, err := parseUTC(doc.EndUTCTime)
	if err != nil {
		return AssessmentRecord{}, &ValidationError{Field: "end_utc_time", Reason: err.Error()}
	}

	window := segmenter.TimeWindow{
		StartOffset: time.Duration(doc.StartTime * float64(time.Second)),
		EndOffset:   time.Duration(doc.EndTime * float64(time.Second)),
		StartUTC:    startUTC,
		EndUTC:      endUTC,
	}

	return normalize(rawAssessment{
		CrowdDensity:           &doc.CrowdDensity,
		CrowdFlow:              &doc.CrowdFlow,
		EstimatedCount:         doc.EstimatedCount,
		FireSmokeDetected:      &doc.FireSmokeDetected,
		CongestedEntryExits:    &doc.CongestedEntryExits,
		SafetyLevel:            &doc.SafetyLevel,
		NeedsIntervention:      &doc.NeedsIntervention,
		AdditionalObservations: doc.AdditionalObservations,
	}, window)
}

func parseUTC(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

package models

// EventDocument is the flattened window+assessment record persisted to the
// event store by the splitting pipeline, one per analyzed chunk. Field names
// match the documents the upstream pipeline writes.
type EventDocument struct {
	ID                     string  `json:"id"`
	ChunkPath              string  `json:"chunk_path,omitempty"`
	StartTime              float64 `json:"start_time"`
	EndTime                float64 `json:"end_time"`
	StartUTCTime           string  `json:"start_utc_time"`
	EndUTCTime             string  `json:"end_utc_time"`
	CrowdDensity           string  `json:"crowd_density"`
	CrowdFlow              string  `json:"crowd_flow"`
	EstimatedCount         *int    `json:"estimated_count"`
	FireSmokeDetected      string  `json:"fire_smoke_detected"`
	CongestedEntryExits    string  `json:"congested_entry_exits"`
	SafetyLevel            string  `json:"safety_level"`
	NeedsIntervention      string  `json:"needs_security_intervention"`
	AdditionalObservations string  `json:"additional_observations"`
}

// IncidentReport is an operator- or public-sourced incident synthesized by
// the chat flow.
type IncidentReport struct {
	Reportee    string `json:"reportee"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	ReportedAt  string `json:"reported_at"` // ISO-8601 UTC
}

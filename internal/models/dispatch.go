// Package models defines the data structures shared across flows: unit
// types, dispatch records, and stored event documents.
package models

import "time"

// UnitType identifies an emergency response unit.
type UnitType string

const (
	UnitNone    UnitType = "none"
	UnitPolice  UnitType = "police"
	UnitMedical UnitType = "medical"
	UnitFire    UnitType = "fire"
)

// Valid reports whether the unit type is one of the known values.
func (u UnitType) Valid() bool {
	switch u {
	case UnitNone, UnitPolice, UnitMedical, UnitFire:
		return true
	}
	return false
}

// Priority is the dispatch urgency level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether the priority is one of the known values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DispatchRequest is the payload handed to the publish channel when a unit
// is dispatched.
type DispatchRequest struct {
	UnitType  UnitType `json:"unit_type"`
	Location  string   `json:"location"`
	Priority  Priority `json:"priority"`
	Timestamp string   `json:"timestamp"` // ISO-8601 UTC
	Status    string   `json:"status"`
}

// RecentDispatch is one entry of the append-only dispatch ledger consulted
// for deduplication.
type RecentDispatch struct {
	UnitType UnitType  `json:"unit_type"`
	Location string    `json:"location"`
	IssuedAt time.Time `json:"issued_at"`
}

// DispatchDecision is the engine's outcome for one trigger. Never mutated
// after creation.
type DispatchDecision struct {
	ID         string   `json:"id"`
	UnitType   UnitType `json:"unit_type"`
	Location   string   `json:"location"`
	Priority   Priority `json:"priority"`
	Suppressed bool     `json:"suppressed"`
	Reason     string   `json:"reason"`
}

package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/metrics"
	"crowd-safety-service/internal/predictor"
)

// Decision reasons.
const (
	ReasonDispatched     = "dispatched"
	ReasonDuplicate      = "duplicate"
	ReasonNoUnitRequired = "no_unit_required"
	ReasonPublishFailed  = "publish_failed"
)

// DefaultCooldown is the minimum interval between two dispatches of the same
// unit type to the same location.
const DefaultCooldown = 10 * time.Minute

// Publisher hands confirmed dispatch requests to the external channel.
type Publisher interface {
	PublishDispatch(ctx context.Context, req models.DispatchRequest) error
}

// Engine decides whether and what to dispatch. The suppression check and the
// ledger append are atomic per decision: a single mutex serializes
// decide-and-record, so concurrent triggers for the same area cannot both
// pass the dedup check.
type Engine struct {
	mu        sync.Mutex
	ledger    Ledger
	publisher Publisher
	cooldown  time.Duration
	metrics   *metrics.Metrics
}

// NewEngine creates a dispatch engine. A cooldown of zero falls back to
// DefaultCooldown.
func NewEngine(ledger Ledger, publisher Publisher, cooldown time.Duration) *Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{
		ledger:    ledger,
		publisher: publisher,
		cooldown:  cooldown,
		metrics:   metrics.DefaultMetrics,
	}
}

// UnitForRecord selects the unit a single assessment calls for. Rules are
// checked in order, first match wins: fire > medical > police > none.
func UnitForRecord(rec analysis.AssessmentRecord) models.UnitType {
	if rec.FireSmokeDetected {
		return models.UnitFire
	}
	if rec.SafetyLevel == analysis.SafetyCritical && rec.CrowdFlow == analysis.FlowSeverelyRestricted {
		return models.UnitMedical
	}
	if rec.CrowdDensity >= analysis.DensityHigh && rec.CrowdFlow != analysis.FlowUnrestricted {
		return models.UnitPolice
	}
	return models.UnitNone
}

// PriorityForRecord maps an assessment and its selected unit to a priority:
// critical safety level or a fire unit is high, high risk is medium,
// everything else low.
func PriorityForRecord(rec analysis.AssessmentRecord, unit models.UnitType) models.Priority {
	if rec.SafetyLevel == analysis.SafetyCritical || unit == models.UnitFire {
		return models.PriorityHigh
	}
	if rec.SafetyLevel == analysis.SafetyHighRisk {
		return models.PriorityMedium
	}
	return models.PriorityLow
}

// PriorityForPrediction maps a predicted state's recommended unit to a
// priority. Fire and medical recommendations only arise from fire/smoke or
// critical stampede risk, so both rank high.
func PriorityForPrediction(state predictor.PredictedState) models.Priority {
	switch state.RecommendedUnit {
	case models.UnitFire, models.UnitMedical:
		return models.PriorityHigh
	case models.UnitPolice:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// DecideForRecord runs the decision pipeline for one assessment record.
func (e *Engine) DecideForRecord(ctx context.Context, rec analysis.AssessmentRecord, location string, now time.Time) models.DispatchDecision {
	unit := UnitForRecord(rec)
	return e.Decide(ctx, unit, PriorityForRecord(rec, unit), location, now)
}

// DecideForPrediction runs the decision pipeline for a predicted state,
// passing its recommended unit through.
func (e *Engine) DecideForPrediction(ctx context.Context, state predictor.PredictedState, location string, now time.Time) models.DispatchDecision {
	return e.Decide(ctx, state.RecommendedUnit, PriorityForPrediction(state), location, now)
}

// Decide produces one DispatchDecision and, when not suppressed, publishes
// the dispatch request and records it in the ledger.
func (e *Engine) Decide(ctx context.Context, unit models.UnitType, priority models.Priority, location string, now time.Time) models.DispatchDecision {
	decision := models.DispatchDecision{
		ID:       uuid.NewString(),
		UnitType: unit,
		Location: location,
		Priority: priority,
	}

	if unit == models.UnitNone {
		decision.Suppressed = true
		decision.Reason = ReasonNoUnitRequired
		e.metrics.RecordDispatchDecision(string(unit), decision.Reason)
		return decision
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seen, err := e.ledger.SeenWithin(ctx, unit, location, now.Add(-e.cooldown))
	if err != nil {
		// A ledger that cannot answer must not block an emergency dispatch;
		// log and proceed as if unseen.
		log.Error().Err(err).
			Str("unitType", string(unit)).
			Str("location", location).
			Msg("Ledger lookup failed, proceeding without dedup")
	}
	if seen {
		decision.Suppressed = true
		decision.Reason = ReasonDuplicate
		e.metrics.RecordDispatchDecision(string(unit), decision.Reason)
		log.Info().
			Str("unitType", string(unit)).
			Str("location", location).
			Msg("Dispatch suppressed as duplicate")
		return decision
	}

	req := models.DispatchRequest{
		UnitType:  unit,
		Location:  location,
		Priority:  priority,
		Timestamp: now.UTC().Format(time.RFC3339),
		Status:    "dispatched",
	}
	if err := e.publisher.PublishDispatch(ctx, req); err != nil {
		// Caller owns the retry; the ledger stays untouched so a retry is
		// not suppressed as a duplicate.
		decision.Reason = ReasonPublishFailed
		e.metrics.RecordDispatchDecision(string(unit), decision.Reason)
		log.Error().Err(err).
			Str("unitType", string(unit)).
			Str("location", location).
			Msg("Dispatch publish failed")
		return decision
	}

	if err := e.ledger.Append(ctx, models.RecentDispatch{
		UnitType: unit,
		Location: location,
		IssuedAt: now,
	}); err != nil {
		log.Error().Err(err).
			Str("unitType", string(unit)).
			Str("location", location).
			Msg("Failed to record dispatch in ledger")
	}

	decision.Reason = ReasonDispatched
	e.metrics.RecordDispatchDecision(string(unit), decision.Reason)
	log.Info().
		Str("unitType", string(unit)).
		Str("location", location).
		Str("priority", string(priority)).
		Msg("Unit dispatched")
	return decision
}

// RecentDispatches exposes the ledger's newest entries for status queries.
func (e *Engine) RecentDispatches(ctx context.Context, limit int) ([]models.RecentDispatch, error) {
	return e.ledger.Recent(ctx, limit)
}

// Cooldown returns the configured dedup cool-down window.
func (e *Engine) Cooldown() time.Duration {
	return e.cooldown
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/predictor"
)

// capturingPublisher records published requests and can simulate broker
// failure.
type capturingPublisher struct {
	mu        sync.Mutex
	published []models.DispatchRequest
	fail      bool
}

func (p *capturingPublisher) PublishDispatch(ctx context.Context, req models.DispatchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, req)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestEngine(t *testing.T) (*Engine, *capturingPublisher) {
	t.Helper()
	pub := &capturingPublisher{}
	return NewEngine(NewMemoryLedger(10*time.Minute), pub, 10*time.Minute), pub
}

func TestEngine_SecondDispatchWithinCooldownSuppressed(t *testing.T) {
	engine, pub := newTestEngine(t)
	now := time.Date(2025, 7, 27, 4, 13, 0, 0, time.UTC)

	first := engine.Decide(context.Background(), models.UnitPolice, models.PriorityMedium, "Platform 3", now)
	if first.Suppressed {
		t.Fatalf("first decision must not be suppressed, reason=%s", first.Reason)
	}
	if first.Reason != ReasonDispatched {
		t.Errorf("expected reason dispatched, got %s", first.Reason)
	}

	second := engine.Decide(context.Background(), models.UnitPolice, models.PriorityMedium, "Platform 3", now.Add(1*time.Minute))
	if !second.Suppressed {
		t.Fatal("second decision within cool-down must be suppressed")
	}
	if second.Reason != ReasonDuplicate {
		t.Errorf("expected reason duplicate, got %s", second.Reason)
	}
	if pub.count() != 1 {
		t.Errorf("expected exactly one publish, got %d", pub.count())
	}
}

func TestEngine_LocationMatchIsCaseInsensitive(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now().UTC()

	engine.Decide(context.Background(), models.UnitMedical, models.PriorityHigh, "Platform 3", now)
	second := engine.Decide(context.Background(), models.UnitMedical, models.PriorityHigh, "PLATFORM 3", now.Add(time.Minute))

	if !second.Suppressed || second.Reason != ReasonDuplicate {
		t.Errorf("case variants of the same location must dedup, got suppressed=%v reason=%s",
			second.Suppressed, second.Reason)
	}
}

func TestEngine_DifferentUnitOrLocationNotSuppressed(t *testing.T) {
	engine, pub := newTestEngine(t)
	now := time.Now().UTC()

	engine.Decide(context.Background(), models.UnitPolice, models.PriorityMedium, "Platform 3", now)

	other := engine.Decide(context.Background(), models.UnitMedical, models.PriorityHigh, "Platform 3", now.Add(time.Minute))
	if other.Suppressed {
		t.Error("different unit type to the same location must not be suppressed")
	}

	elsewhere := engine.Decide(context.Background(), models.UnitPolice, models.PriorityMedium, "Gate 2", now.Add(time.Minute))
	if elsewhere.Suppressed {
		t.Error("same unit type to a different location must not be suppressed")
	}

	if pub.count() != 3 {
		t.Errorf("expected three publishes, got %d", pub.count())
	}
}

func TestEngine_DispatchAllowedAfterCooldown(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Date(2025, 7, 27, 4, 0, 0, 0, time.UTC)

	engine.Decide(context.Background(), models.UnitFire, models.PriorityHigh, "Building B", now)
	later := engine.Decide(context.Background(), models.UnitFire, models.PriorityHigh, "Building B", now.Add(11*time.Minute))

	if later.Suppressed {
		t.Errorf("dispatch after cool-down must be allowed, reason=%s", later.Reason)
	}
}

func TestEngine_NoUnitRequiredNeverPublishes(t *testing.T) {
	engine, pub := newTestEngine(t)

	decision := engine.Decide(context.Background(), models.UnitNone, models.PriorityLow, "Platform 3", time.Now().UTC())

	if !decision.Suppressed {
		t.Error("no-unit decision must be suppressed")
	}
	if decision.Reason != ReasonNoUnitRequired {
		t.Errorf("expected reason no_unit_required, got %s", decision.Reason)
	}
	if pub.count() != 0 {
		t.Error("no-unit decision must never reach the publish channel")
	}
}

func TestEngine_PublishFailureAnnotatedAndNotRecorded(t *testing.T) {
	pub := &capturingPublisher{fail: true}
	ledger := NewMemoryLedger(10 * time.Minute)
	engine := NewEngine(ledger, pub, 10*time.Minute)
	now := time.Now().UTC()

	decision := engine.Decide(context.Background(), models.UnitFire, models.PriorityHigh, "Building B", now)
	if decision.Suppressed {
		t.Error("publish failure must not mark the decision suppressed")
	}
	if decision.Reason != ReasonPublishFailed {
		t.Errorf("expected reason publish_failed, got %s", decision.Reason)
	}
	if ledger.Len() != 0 {
		t.Error("failed publish must not be recorded in the ledger")
	}

	// Caller retry after the broker recovers must not be deduped.
	pub.fail = false
	retry := engine.Decide(context.Background(), models.UnitFire, models.PriorityHigh, "Building B", now.Add(time.Second))
	if retry.Suppressed || retry.Reason != ReasonDispatched {
		t.Errorf("retry after publish failure must dispatch, got suppressed=%v reason=%s",
			retry.Suppressed, retry.Reason)
	}
}

func TestEngine_ConcurrentDecisionsSingleDispatch(t *testing.T) {
	engine, pub := newTestEngine(t)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	results := make([]models.DispatchDecision, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Decide(context.Background(), models.UnitPolice, models.PriorityMedium, "Platform 3", now)
		}(i)
	}
	wg.Wait()

	dispatched := 0
	for _, d := range results {
		if !d.Suppressed {
			dispatched++
		}
	}
	if dispatched != 1 {
		t.Errorf("expected exactly one non-suppressed decision, got %d", dispatched)
	}
	if pub.count() != 1 {
		t.Errorf("expected exactly one publish, got %d", pub.count())
	}
}

func TestUnitForRecord_RuleOrder(t *testing.T) {
	tests := []struct {
		name string
		rec  analysis.AssessmentRecord
		want models.UnitType
	}{
		{
			"fire wins over everything",
			analysis.AssessmentRecord{
				FireSmokeDetected: true,
				SafetyLevel:       analysis.SafetyCritical,
				CrowdFlow:         analysis.FlowSeverelyRestricted,
				CrowdDensity:      analysis.DensitySevere,
			},
			models.UnitFire,
		},
		{
			"critical restricted flow is medical",
			analysis.AssessmentRecord{
				SafetyLevel:  analysis.SafetyCritical,
				CrowdFlow:    analysis.FlowSeverelyRestricted,
				CrowdDensity: analysis.DensitySevere,
			},
			models.UnitMedical,
		},
		{
			"dense restricted crowd is police",
			analysis.AssessmentRecord{
				SafetyLevel:  analysis.SafetyHighRisk,
				CrowdFlow:    analysis.FlowModeratelyRestricted,
				CrowdDensity: analysis.DensityHigh,
			},
			models.UnitPolice,
		},
		{
			"calm window needs nothing",
			analysis.AssessmentRecord{
				SafetyLevel:  analysis.SafetySafe,
				CrowdFlow:    analysis.FlowUnrestricted,
				CrowdDensity: analysis.DensityLow,
			},
			models.UnitNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnitForRecord(tt.rec); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPriorityMapping(t *testing.T) {
	critical := analysis.AssessmentRecord{SafetyLevel: analysis.SafetyCritical}
	if got := PriorityForRecord(critical, models.UnitMedical); got != models.PriorityHigh {
		t.Errorf("critical level must be high priority, got %v", got)
	}

	fire := analysis.AssessmentRecord{SafetyLevel: analysis.SafetyModerateRisk}
	if got := PriorityForRecord(fire, models.UnitFire); got != models.PriorityHigh {
		t.Errorf("fire unit must be high priority, got %v", got)
	}

	highRisk := analysis.AssessmentRecord{SafetyLevel: analysis.SafetyHighRisk}
	if got := PriorityForRecord(highRisk, models.UnitPolice); got != models.PriorityMedium {
		t.Errorf("high risk must be medium priority, got %v", got)
	}

	calm := analysis.AssessmentRecord{SafetyLevel: analysis.SafetySafe}
	if got := PriorityForRecord(calm, models.UnitNone); got != models.PriorityLow {
		t.Errorf("safe level must be low priority, got %v", got)
	}
}

func TestEngine_DecideForPrediction_PassesUnitThrough(t *testing.T) {
	engine, pub := newTestEngine(t)

	state := predictor.PredictedState{RecommendedUnit: models.UnitFire, FireOrSmoke: true}
	decision := engine.DecideForPrediction(context.Background(), state, "Building B", time.Now().UTC())

	if decision.UnitType != models.UnitFire {
		t.Errorf("expected fire unit, got %v", decision.UnitType)
	}
	if decision.Priority != models.PriorityHigh {
		t.Errorf("expected high priority, got %v", decision.Priority)
	}
	if pub.count() != 1 {
		t.Errorf("expected one publish, got %d", pub.count())
	}
}

func TestMemoryLedger_PrunesExpiredEntries(t *testing.T) {
	ledger := NewMemoryLedger(10 * time.Minute)
	now := time.Date(2025, 7, 27, 4, 0, 0, 0, time.UTC)

	ledger.Append(context.Background(), models.RecentDispatch{
		UnitType: models.UnitPolice, Location: "Platform 3", IssuedAt: now,
	})
	ledger.Append(context.Background(), models.RecentDispatch{
		UnitType: models.UnitFire, Location: "Building B", IssuedAt: now.Add(15 * time.Minute),
	})

	if ledger.Len() != 1 {
		t.Errorf("expected stale entry pruned, ledger has %d entries", ledger.Len())
	}

	seen, err := ledger.SeenWithin(context.Background(), models.UnitPolice, "Platform 3", now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("pruned entry must not satisfy SeenWithin")
	}
}

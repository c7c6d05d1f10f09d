// Package mock provides a mock vision analyzer for testing without API
// credentials. It cycles through canned assessments, some wrapped in markdown
// fences the way real models emit them.
package mock

import (
	"context"
	"sync"

	"crowd-safety-service/internal/segmenter"
)

// CannedResponses are sample analyzer outputs covering calm through critical
// conditions. The fenced entries exercise the fence-stripping boundary.
var CannedResponses = []string{
	`{"crowd_density": "low", "crowd_flow": "unrestricted", "estimated_count": 40, "fire_smoke_detected": "no", "congested_entry_exits": "no", "safety_level": "safe", "needs_security_intervention": "no", "additional_observations": "Sparse foot traffic across the concourse."}`,
	"```json\n{\"crowd_density\": \"medium\", \"crowd_flow\": \"unrestricted\", \"estimated_count\": 120, \"fire_smoke_detected\": \"no\", \"congested_entry_exits\": \"no\", \"safety_level\": \"safe\", \"needs_security_intervention\": \"no\", \"additional_observations\": \"Steady flow near the ticket gates.\"}\n```",
	`{"crowd_density": "high", "crowd_flow": "moderately_restricted", "estimated_count": 300, "fire_smoke_detected": "no", "congested_entry_exits": "yes", "safety_level": "moderate_risk", "needs_security_intervention": "no", "additional_observations": "Queues forming at the main exit."}`,
	"```json\n{\"crowd_density\": \"severe\", \"crowd_flow\": \"severely_restricted\", \"estimated_count\": 500, \"fire_smoke_detected\": \"no\", \"congested_entry_exits\": \"yes\", \"safety_level\": \"critical\", \"needs_security_intervention\": \"yes\", \"additional_observations\": \"Dense crowd with no visible movement lanes.\"}\n```",
}

// Adapter implements analyzer.Adapter with canned responses.
type Adapter struct {
	mu        sync.Mutex
	responses []string
	next      int
	closed    bool
}

// New creates a mock analyzer cycling through CannedResponses.
func New() *Adapter {
	return &Adapter{responses: CannedResponses}
}

// NewWithResponses creates a mock analyzer with a fixed response script.
func NewWithResponses(responses []string) *Adapter {
	return &Adapter{responses: responses}
}

// AnalyzeFrame returns the next canned response, cycling when exhausted.
func (a *Adapter) AnalyzeFrame(ctx context.Context, frame []byte, window segmenter.TimeWindow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	resp := a.responses[a.next%len(a.responses)]
	a.next++
	return resp, nil
}

// Close ends the mock session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Package session provides per-conversation history storage behind a small
// interface, so in-memory, Redis-backed, or distributed implementations are
// interchangeable.
package session

import (
	"context"
	"sync"
	"time"

	"crowd-safety-service/internal/observability/metrics"
)

// DefaultHistoryCap bounds a session's retained history; the oldest entries
// are dropped first.
const DefaultHistoryCap = 200

// Kind names the flow a session belongs to. Sessions of different kinds
// never share mutable state.
type Kind string

const (
	KindOrchestrator Kind = "orchestrator"
	KindAnalysis     Kind = "analysis"
	KindChat         Kind = "chat"
	KindDispatch     Kind = "dispatch"
)

// Entry is one message or response retained in a session's history.
type Entry struct {
	Role    string    `json:"role"` // user or system
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store is the capability the router depends on. Created lazily on first
// append per session id.
type Store interface {
	// Get returns the session's ordered history, oldest first. A session
	// that was never written to yields an empty history, not an error.
	Get(ctx context.Context, id string) ([]Entry, error)

	// Append adds an entry to the session's history.
	Append(ctx context.Context, id string, entry Entry) error
}

// MemoryStore is an in-process Store with a per-session history cap.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
	cap      int
	metrics  *metrics.Metrics
}

// NewMemoryStore creates a session store capped at historyCap entries per
// session. A cap of zero falls back to DefaultHistoryCap.
func NewMemoryStore(historyCap int) *MemoryStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &MemoryStore{
		sessions: make(map[string][]Entry),
		cap:      historyCap,
		metrics:  metrics.DefaultMetrics,
	}
}

// Get returns a copy of the session's history.
func (s *MemoryStore) Get(ctx context.Context, id string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	out := make([]Entry, len(history))
	copy(out, history)
	return out, nil
}

// Append adds an entry, dropping the oldest when the cap is reached.
func (s *MemoryStore) Append(ctx context.Context, id string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		s.metrics.SessionsActive.Inc()
	}
	history := append(s.sessions[id], entry)
	if len(history) > s.cap {
		history = history[len(history)-s.cap:]
	}
	s.sessions[id] = history
	s.metrics.RecordSessionMessage()
	return nil
}

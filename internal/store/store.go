// Package store provides the event store the analysis flows read recent
// history from.
package store

import (
	"context"
	"sync"
	"time"

	"crowd-safety-service/internal/models"
)

// EventStore persists per-window event documents and serves recent history,
// newest first by end UTC time.
type EventStore interface {
	// GetRecent returns up to limit documents, newest first.
	GetRecent(ctx context.Context, limit int) ([]models.EventDocument, error)

	// Append persists one event document.
	Append(ctx context.Context, endUTC time.Time, doc models.EventDocument) error
}

// MemoryStore is an in-process EventStore, used in tests and when Redis is
// disabled.
type MemoryStore struct {
	mu     sync.RWMutex
	events []storedEvent
}

type storedEvent struct {
	endUTC time.Time
	doc    models.EventDocument
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append persists a document, keeping the slice sorted by end time.
func (s *MemoryStore) Append(ctx context.Context, endUTC time.Time, doc models.EventDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := storedEvent{endUTC: endUTC, doc: doc}
	i := len(s.events)
	for i > 0 && s.events[i-1].endUTC.After(endUTC) {
		i--
	}
	s.events = append(s.events, storedEvent{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = entry
	return nil
}

// GetRecent returns up to limit documents, newest first.
func (s *MemoryStore) GetRecent(ctx context.Context, limit int) ([]models.EventDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.EventDocument, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.events[i].doc)
	}
	return out, nil
}

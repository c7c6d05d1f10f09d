// Package dispatch converts assessments into prioritized unit-dispatch
// decisions and suppresses redundant dispatches to the same area.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"crowd-safety-service/internal/models"
)

// Ledger is the append-only record of recent dispatches consulted for
// deduplication. Implementations must tolerate concurrent readers; the engine
// serializes writers.
type Ledger interface {
	// SeenWithin reports whether a dispatch of unit to location (location
	// compared case-insensitively) was recorded at or after since.
	SeenWithin(ctx context.Context, unit models.UnitType, location string, since time.Time) (bool, error)

	// Append records a confirmed dispatch.
	Append(ctx context.Context, entry models.RecentDispatch) error

	// Recent returns up to limit newest entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.RecentDispatch, error)
}

// MemoryLedger is an in-process Ledger with bounded retention: entries older
// than the retention window are pruned on append.
type MemoryLedger struct {
	mu        sync.RWMutex
	entries   []models.RecentDispatch
	retention time.Duration
}

// NewMemoryLedger creates a ledger that keeps entries for retention.
func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &MemoryLedger{retention: retention}
}

// SeenWithin reports whether a matching dispatch was recorded since the
// given time.
func (l *MemoryLedger) SeenWithin(ctx context.Context, unit models.UnitType, location string, since time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.UnitType == unit && strings.EqualFold(e.Location, location) && !e.IssuedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Append records a dispatch and prunes entries past retention.
func (l *MemoryLedger) Append(ctx context.Context, entry models.RecentDispatch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := entry.IssuedAt.Add(-l.retention)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.IssuedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = append(kept, entry)
	return nil
}

// Recent returns up to limit newest entries, newest first.
func (l *MemoryLedger) Recent(ctx context.Context, limit int) ([]models.RecentDispatch, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.RecentDispatch, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

// Len returns the number of retained entries.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

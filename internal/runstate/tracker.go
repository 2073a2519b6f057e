// Package runstate records the explicit state of each transformation run so
// that readers do not have to infer progress from files on disk.
package runstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"shaggydog/internal/domain"
)

// DefaultTTL is how long a run's state is kept when no TTL is configured.
const DefaultTTL = 72 * time.Hour

// ErrUnknownRun is returned when no state has been recorded for a run.
var ErrUnknownRun = errors.New("runstate: unknown run")

// Snapshot is the last recorded state of a run.
type Snapshot struct {
	State     domain.RunState
	Detail    string
	UpdatedAt time.Time
}

// Tracker stores run state transitions.
type Tracker interface {
	Set(ctx context.Context, runID string, state domain.RunState, detail string) error
	Get(ctx context.Context, runID string) (Snapshot, error)
}

// MemoryTracker keeps run state in process memory. Entries older than the
// TTL are dropped, mirroring the expiry of RedisTracker.
type MemoryTracker struct {
	mu        sync.RWMutex
	runs      map[string]Snapshot
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryTracker returns an empty in-memory tracker. A ttl <= 0 keeps
// entries forever.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{runs: make(map[string]Snapshot), ttl: ttl, now: time.Now}
}

func (m *MemoryTracker) Set(ctx context.Context, runID string, state domain.RunState, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = Snapshot{State: state, Detail: detail, UpdatedAt: now}
	m.sweepLocked(now)
	return nil
}

func (m *MemoryTracker) Get(ctx context.Context, runID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.runs[runID]
	if !ok || m.expired(snap, m.now().UTC()) {
		return Snapshot{}, ErrUnknownRun
	}
	return snap, nil
}

// Len reports how many runs are held, expired or not.
func (m *MemoryTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

func (m *MemoryTracker) expired(snap Snapshot, now time.Time) bool {
	return m.ttl > 0 && now.Sub(snap.UpdatedAt) > m.ttl
}

// sweepLocked drops expired runs at most once per sweep interval.
func (m *MemoryTracker) sweepLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	if now.Sub(m.lastSweep) < interval {
		return
	}
	m.lastSweep = now
	for id, snap := range m.runs {
		if m.expired(snap, now) {
			delete(m.runs, id)
		}
	}
}

var _ Tracker = (*MemoryTracker)(nil)

package service

import (
	"sync"
	"time"
)

// StatusTracker records the outcome of scheduled cycles for the status API.
// It is written by the schedule worker and read by HTTP handlers.
type StatusTracker struct {
	mu        sync.RWMutex
	startedAt time.Time
	cycles    int
	failures  int
	last      *RunReport
	nextWake  time.Time
}

// StatusSnapshot is a consistent copy of the tracker state.
type StatusSnapshot struct {
	StartedAt time.Time  `json:"started_at"`
	Cycles    int        `json:"cycles"`
	Failures  int        `json:"failures"`
	LastRun   *RunReport `json:"last_run"`
	NextWake  *time.Time `json:"next_wake,omitempty"`
}

func NewStatusTracker(now time.Time) *StatusTracker {
	return &StatusTracker{startedAt: now}
}

func (t *StatusTracker) Record(r RunReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles++
	if r.Error != "" {
		t.failures++
	}
	t.last = &r
}

func (t *StatusTracker) SetNextWake(at time.Time) {
	t.mu.Lock()
	t.nextWake = at
	t.mu.Unlock()
}

func (t *StatusTracker) Snapshot() StatusSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := StatusSnapshot{
		StartedAt: t.startedAt,
		Cycles:    t.cycles,
		Failures:  t.failures,
	}
	if t.last != nil {
		last := *t.last
		snap.LastRun = &last
	}
	if !t.nextWake.IsZero() {
		next := t.nextWake
		snap.NextWake = &next
	}
	return snap
}

// Package task implements the Task Tracker & Shutdown Coordinator: a
// process-wide in-flight work counter and an is_running gate, behind
// small typed accessors rather than raw global mutable state.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const drainPollInterval = 100 * time.Millisecond

// Tracker gates new work on an is_running flag and counts in-flight
// decode/sink tasks so shutdown can wait for a clean drain.
type Tracker struct {
	running  atomic.Bool
	inFlight atomic.Int64
}

// New builds a running Tracker.
func New() *Tracker {
	t := &Tracker{}
	t.running.Store(true)
	return t
}

// Running reports whether new work should still be dispatched.
func (t *Tracker) Running() bool {
	return t.running.Load()
}

// Begin registers one in-flight task and returns its completion
// callback. Begin returns ok=false without registering anything if the
// tracker is no longer running — callers must not start the task.
func (t *Tracker) Begin() (done func(), ok bool) {
	if !t.running.Load() {
		return func() {}, false
	}
	t.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { t.inFlight.Add(-1) })
	}, true
}

// InFlight returns the current in-flight task count.
func (t *Tracker) InFlight() int64 {
	return t.inFlight.Load()
}

// Shutdown flips is_running to false, gating new work, then polls the
// in-flight counter until it reaches zero or ctx is cancelled.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.running.Store(false)

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	if t.inFlight.Load() == 0 {
		return nil
	}

	for {
		select {
		case <-ticker.C:
			if t.inFlight.Load() == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

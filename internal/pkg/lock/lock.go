// Package lock provides a non-blocking run lock used by the import triggers.
//
// The import pipeline is single-writer by scheduling discipline: the watcher,
// the periodic timer and the manual HTTP trigger all acquire this lock before
// calling the orchestrator, and skip the run when another one is in flight.
// The store-level uniqueness constraint covers the case where the discipline
// is violated; this lock only avoids wasted duplicate passes.
package lock

import (
	"errors"
	"sync/atomic"
)

// ErrRunInProgress is returned when an import run is already in flight.
var ErrRunInProgress = errors.New("import run already in progress")

// RunLock serializes import runs across triggers.
type RunLock struct {
	busy atomic.Bool
}

// NewRunLock creates a new RunLock instance.
func NewRunLock() *RunLock {
	return &RunLock{}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (l *RunLock) TryLock() bool {
	return l.busy.CompareAndSwap(false, true)
}

// Unlock releases the lock.
func (l *RunLock) Unlock() {
	l.busy.Store(false)
}

// WithLock runs fn while holding the lock, or returns ErrRunInProgress
// without running it when the lock is held elsewhere.
func (l *RunLock) WithLock(fn func() error) error {
	if !l.TryLock() {
		return ErrRunInProgress
	}
	defer l.Unlock()
	return fn()
}

// Held reports whether a run currently holds the lock.
// This is a point-in-time check and may change immediately after.
func (l *RunLock) Held() bool {
	return l.busy.Load()
}

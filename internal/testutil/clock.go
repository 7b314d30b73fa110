package testutil

import (
	"sync"
	"time"
)

// Epoch is the first reading of a StepClock.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a fake wall clock that advances by a fixed step on every
// reading, so stage timings in traces are reproducible.
//
// Thread-safety: All methods are safe for concurrent use.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock whose first reading is Epoch.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: Epoch.Add(-step), step: step}
}

// Now advances the clock by one step and returns the new time.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Reset rewinds the clock so the next reading is Epoch again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch.Add(-c.step)
}

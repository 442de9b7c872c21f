package testing

import (
	"sync"
	"time"
)

// ManualClock is a state.Clock that only moves when told to. Activation
// windows, deadlines, and competition boundaries all key off the world
// clock, so tests steer it by the second.
type ManualClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewManualClock starts the clock at January 1, 2024 UTC.
func NewManualClock() *ManualClock {
	return NewManualClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// NewManualClockAt starts the clock at t.
func NewManualClockAt(t time.Time) *ManualClock {
	return &ManualClock{current: t}
}

// Now returns the current time on the clock.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

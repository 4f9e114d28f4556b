// Package testutil provides deterministic building blocks for tests: a
// stepping clock, a switchable network, and a fake application origin.
package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first reading of a clock created with a zero start.
var DefaultEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock that advances by a fixed step
// on every reading.
//
// Unlike the wall clock, the same scenario run twice observes identical
// timestamps, so stored records and golden traces compare byte-for-byte.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewDeterministicClock creates a clock whose first reading is start.
// A zero start means DefaultEpoch; a zero step means one second.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step == 0 {
		step = time.Second
	}
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns the next reading and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the reading Now will return next, without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock so the next reading is start again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

package engine

import (
	"sync"
	"time"
)

// Clock is the engine's only source of time. Matcher, resolver and cooldown
// stores never read wall time directly, so a simulated clock is transparent
// to all of them.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SimulatedClock is wall time plus a monotonically growing offset. The
// testing lab advances it to fast-forward cooldowns without waiting.
type SimulatedClock struct {
	mu     sync.RWMutex
	offset time.Duration
}

func NewSimulatedClock() *SimulatedClock {
	return &SimulatedClock{}
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance shifts logical time forward by d. Logical time is monotonic:
// negative deltas are rejected with ErrClockSkew.
func (c *SimulatedClock) Advance(d time.Duration) error {
	if d < 0 {
		return ErrClockSkew
	}
	c.mu.Lock()
	c.offset += d
	c.mu.Unlock()
	return nil
}

// Offset returns the accumulated simulated offset.
func (c *SimulatedClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

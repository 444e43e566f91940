package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the engine's notion of "now" in microseconds. It must be
// monotonic and must never block.
type Clock interface {
	NowMicros() int64
}

// SystemClock reports epoch microseconds anchored to a single wall-clock
// reading and advanced by Go's monotonic clock, so wall-clock steps never
// move it backwards.
type SystemClock struct {
	start time.Time
}

// NewSystemClock anchors a SystemClock at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMicros implements Clock.
func (c *SystemClock) NowMicros() int64 {
	return c.start.UnixMicro() + time.Since(c.start).Microseconds()
}

// ManualClock is a Clock that only moves when told to. Safe for concurrent use.
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

// NowMicros implements Clock.
func (c *ManualClock) NowMicros() int64 { return c.now.Load() }

// Set moves the clock to an absolute reading.
func (c *ManualClock) Set(micros int64) { c.now.Store(micros) }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now.Add(d.Microseconds()) }

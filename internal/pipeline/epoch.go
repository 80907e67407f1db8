package pipeline

import "sync/atomic"

// Epoch tags one pipeline run. A result is applied only if its epoch is
// still the current one.
type Epoch uint64

// epochClock hands out monotonically increasing epochs.
type epochClock struct {
	counter atomic.Uint64
}

// Tick starts a new epoch and returns it.
func (c *epochClock) Tick() Epoch {
	return Epoch(c.counter.Add(1))
}

// Current returns the latest epoch handed out.
func (c *epochClock) Current() Epoch {
	return Epoch(c.counter.Load())
}

// IsCurrent reports whether e has not been superseded.
func (c *epochClock) IsCurrent(e Epoch) bool {
	return c.Current() == e
}

package progress

import (
	"sync/atomic"
)

// A Func is a callback for a Counter.
type Func func(value uint64, total uint64)

// A Counter tracks a running count and passes every change to a Func.
type Counter struct {
	report     Func
	value, max atomic.Uint64
}

// NewCounter starts a new Counter. report may be nil.
func NewCounter(total uint64, report Func) *Counter {
	c := &Counter{report: report}
	c.max.Store(total)
	return c
}

// Add v to the Counter. This method is concurrency-safe.
func (c *Counter) Add(v uint64) {
	if c == nil {
		return
	}
	value := c.value.Add(v)
	if c.report != nil {
		c.report(value, c.max.Load())
	}
}

// SetMax sets the maximum expected counter value. This method is concurrency-safe.
func (c *Counter) SetMax(max uint64) {
	if c != nil {
		c.max.Store(max)
	}
}

// Get returns the current value and the maximum of c.
// This method is concurrency-safe.
func (c *Counter) Get() (v, max uint64) {
	if c == nil {
		return 0, 0
	}
	return c.value.Load(), c.max.Load()
}

// Remaining returns max minus the current value, or zero once the value
// reached the maximum.
func (c *Counter) Remaining() uint64 {
	v, max := c.Get()
	if v >= max {
		return 0
	}
	return max - v
}

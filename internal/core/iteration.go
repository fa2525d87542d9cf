package core

import "sync/atomic"

// iterationCounter is the engine's monotonically increasing build
// counter (§3 of the spec). It is incremented once per top-level Build
// call and used to distinguish records current in this build from
// stale ones.
type iterationCounter struct {
	value atomic.Uint64
}

// newIterationCounter creates a counter starting at start (typically
// the last value flushed to the database, or 0 for a fresh database).
func newIterationCounter(start uint64) *iterationCounter {
	c := &iterationCounter{}
	c.value.Store(start)
	return c
}

// next advances the counter and returns the new value. Called once at
// the start of each Build.
func (c *iterationCounter) next() uint64 {
	return c.value.Add(1)
}

// current returns the counter's value without advancing it.
func (c *iterationCounter) current() uint64 {
	return c.value.Load()
}

package store

import "sync/atomic"

// seqClock is the monotonic logical clock stamping document inserts.
// Document order is seq order, never wall time.
type seqClock struct {
	seq atomic.Int64
}

// newSeqClockAt creates a clock resuming after start.
func newSeqClockAt(start int64) *seqClock {
	c := &seqClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *seqClock) Next() int64 {
	return c.seq.Add(1)
}

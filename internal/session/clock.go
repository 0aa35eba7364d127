package session

import "sync/atomic"

// Clock is a monotonic logical clock. Sessions stamp their creation and
// every recorded exchange with it, so a replayed log orders the same way
// it was written.
//
// Clock is safe for concurrent use: every thread of a session shares one.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. A recorder resuming a
// session passes the store's last seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

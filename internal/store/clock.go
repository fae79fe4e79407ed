package store

import "sync/atomic"

// Clock is the store's monotonic write clock. Every content write stamps
// its row with the next value; observers compare stamps to detect
// modifications.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose next value is start+1.
// Open resumes from the highest stamp on disk.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next stamp.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last stamp handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

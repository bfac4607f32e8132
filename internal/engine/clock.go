package engine

import (
	"sync/atomic"
	"time"
)

// Sequencer hands out the logical sequence numbers that totally order
// requests. Clock implements it; tests substitute testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock.
//
// Every request is stamped with a strictly increasing seq, and the journal
// is ordered by it. Wall time never orders anything.
//
// Safe for concurrent use, although only the engine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start. Used when reopening
// a journal whose last seq is known.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// AdvanceTo raises the clock to seq if it is behind. Another writer on the
// same journal may have handed out seqs this clock never saw.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// WallClock supplies the unix time recorded on each invocation. The vault's
// timelock reads this value, never the system clock directly, so replay can
// feed back the recorded timestamps.
type WallClock interface {
	Now() int64
}

// SystemWallClock reads time.Now.
type SystemWallClock struct{}

// Now returns the current unix time in seconds.
func (SystemWallClock) Now() int64 {
	return time.Now().Unix()
}

package engine

import "sync/atomic"

// Clock issues attempt numbers. Each fetch cycle is stamped with Next(); a
// result is committed only while its stamp still equals Current(), which
// makes the counter the stale-result guard as well as the cycle ID.
//
// Safe for concurrent use, although only the loop goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first attempt is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new attempt number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest issued attempt, or 0 before the first.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

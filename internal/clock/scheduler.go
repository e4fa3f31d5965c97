// Package clock provides the wall-time scheduling seam used for retry
// backoff and safety timeouts.
//
// Production code uses Real. Tests use Manual, which only moves when the
// test calls Advance, so backoff schedules and timeouts can be asserted to
// the millisecond without sleeping.
package clock

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// Scheduler reads the current time and runs callbacks after a delay.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules callbacks on the runtime timer heap.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc. The callback runs on its own goroutine.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

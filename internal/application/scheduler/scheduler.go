// Package scheduler provides the timers behind autosave and sync debouncing.
//
// All callbacks of one Scheduler run on a single logical thread: Loop runs
// them one at a time on its own goroutine, and Manual runs them inside
// Advance on the caller's goroutine. Components never use time.AfterFunc
// directly, so debounce windows can be tested without wall-clock waits.
package scheduler

import "time"

// Timer is a pending callback
type Timer interface {
	// Stop cancels the callback and reports whether it was still pending
	Stop() bool
}

// Scheduler runs callbacks after a delay
type Scheduler interface {
	// Now returns the scheduler's current time
	Now() time.Time

	// AfterFunc schedules fn to run once d has elapsed
	AfterFunc(d time.Duration, fn func()) Timer
}

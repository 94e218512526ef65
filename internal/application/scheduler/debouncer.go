package scheduler

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one call.
// Each Trigger resets the window; only the last function given runs, once the
// window passes without another Trigger.
type Debouncer struct {
	mu      sync.Mutex
	sched   Scheduler
	delay   time.Duration
	timer   Timer
	gen     uint64
	pending func()
}

// NewDebouncer creates a debouncer with a fixed window
func NewDebouncer(sched Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{sched: sched, delay: delay}
}

// Delay returns the debounce window
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger (re)arms the window with fn as the call to make when it elapses
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	d.timer = d.sched.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		// superseded by a later Trigger, Cancel or Flush
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Cancel drops the pending call and reports whether there was one
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, had := d.takeLocked()
	return had
}

// Flush runs the pending call immediately and reports whether there was one
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn, had := d.takeLocked()
	d.mu.Unlock()

	if had {
		fn()
	}
	return had
}

// Pending reports whether a call is waiting for the window to elapse
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) takeLocked() (func(), bool) {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	return fn, fn != nil
}

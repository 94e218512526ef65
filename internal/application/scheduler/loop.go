package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a Scheduler backed by the wall clock and a single worker goroutine.
// Timer callbacks are queued and executed in firing order, never concurrently.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewLoop starts a loop with the given queue capacity
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	l := &Loop{
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Now returns the wall-clock time
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn on the loop once d has elapsed
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		l.Post(func() {
			if t.cancelled.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// Post queues fn to run on the loop. It is dropped once the loop is stopped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
	case l.tasks <- fn:
	}
}

// Stop terminates the worker goroutine; pending callbacks are discarded
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	<-l.stopped
}

type loopTimer struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

// Stop prevents the callback from running if it has not started yet
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.cancelled.CompareAndSwap(false, true)
}

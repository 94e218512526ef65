package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler whose clock only moves on Advance.
// Callbacks run synchronously inside Advance, in due order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

// NewManual creates a manual scheduler starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the scheduler's current time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules fn to run once the clock has advanced by d
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls due.
// Callbacks scheduled by callbacks run too if they fall due within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.popDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		m.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of callbacks not yet run or stopped
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// popDue removes and returns the earliest timer due at or before target
func (m *Manual) popDue(target time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.Slice(m.timers, func(i, j int) bool {
		if !m.timers[i].due.Equal(m.timers[j].due) {
			return m.timers[i].due.Before(m.timers[j].due)
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	first := m.timers[0]
	if first.due.After(target) {
		return nil
	}
	m.timers = m.timers[1:]
	return first
}

func (m *Manual) remove(t *manualTimer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	owner *Manual
	due   time.Time
	seq   uint64
	fn    func()
}

// Stop removes the timer if it has not fired
func (t *manualTimer) Stop() bool {
	return t.owner.remove(t)
}

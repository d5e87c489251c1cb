package loop

import (
	"sort"
	"sync"
	"time"
)

var (
	_ Scheduler = (*Loop)(nil)
	_ Scheduler = (*Manual)(nil)
)

// Manual is a deterministic Scheduler whose clock only moves on Advance.
// Posted tasks and due timers run on the goroutine calling Advance or Flush.
// Post may be called from any goroutine; everything else must be called from
// the goroutine driving the clock.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTimer

	mu    sync.Mutex
	queue []func()
}

func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{owner: m, deadline: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Flush runs queued tasks and timers that are already due.
func (m *Manual) Flush() {
	m.Advance(0)
}

// Advance moves the clock forward by d, running every timer that falls due
// in deadline order. Posted tasks are drained before and after each timer.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.drain()
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		if next.deadline.After(m.now) {
			m.now = next.deadline
		}
		m.remove(next)
		next.fn()
		m.drain()
	}
	m.now = target
}

// Pending reports how many timers are scheduled and not yet stopped or fired.
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		task()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline.Equal(m.timers[j].deadline) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})
	first := m.timers[0]
	if first.deadline.After(target) {
		return nil
	}
	return first
}

func (m *Manual) remove(t *manualTimer) bool {
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	owner    *Manual
	deadline time.Time
	seq      int
	fn       func()
}

func (t *manualTimer) Stop() bool {
	return t.owner.remove(t)
}

package scheduler

import (
	"context"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by a virtual clock.
// Nothing runs until Flush or Advance is called, which makes it suitable
// for testing state machines built on Scheduler.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	task
	due   time.Time
	every time.Duration
	fn    func()
	seq   int
}

// NewManual creates a manual scheduler whose clock starts at the Unix epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0)}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	return m.addTimer(d, 0, fn)
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		return nopHandle{}
	}
	return m.addTimer(d, d, fn)
}

func (m *Manual) addTimer(d, every time.Duration, fn func()) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{
		due:   m.now.Add(d),
		every: every,
		fn:    fn,
		seq:   m.seq,
	}
	m.timers = append(m.timers, t)
	return t
}

// Go implements Scheduler. work runs synchronously; done is queued.
func (m *Manual) Go(work func(), done func()) {
	work()
	if done != nil {
		m.Post(done)
	}
}

// Do implements Scheduler. fn runs immediately on the caller's goroutine,
// which in tests is the loop.
func (m *Manual) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// Flush runs queued tasks, including tasks they queue, until none remain.
func (m *Manual) Flush() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in order.
// Queued tasks are flushed before and after every timer.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.Flush()

		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			break
		}
		m.now = next.due
		if next.every > 0 {
			next.due = next.due.Add(next.every)
		} else {
			m.removeLocked(next)
		}
		m.mu.Unlock()

		if next.active() {
			if next.every == 0 {
				next.canceled.Store(true)
			}
			next.fn()
		}
	}
	m.Flush()
}

// Pending returns the number of queued tasks plus active timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	for _, t := range m.timers {
		if t.active() {
			n++
		}
	}
	return n
}

// ActiveTimers returns the number of timers that can still fire.
func (m *Manual) ActiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.active() {
			n++
		}
	}
	return n
}

func (m *Manual) nextDueLocked(limit time.Time) *manualTimer {
	var next *manualTimer
	kept := m.timers[:0]
	for _, t := range m.timers {
		if !t.active() {
			continue
		}
		kept = append(kept, t)
		if t.due.After(limit) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	m.timers = kept
	return next
}

func (m *Manual) removeLocked(target *manualTimer) {
	for i, t := range m.timers {
		if t == target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

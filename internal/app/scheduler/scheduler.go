// Package scheduler provides the cooperative task/timer model the radio core
// runs on: every callback executes on a single control flow, timers return
// cancelable handles, and blocking work is moved off the loop with its
// completion posted back.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"
)

// Scheduler serializes tasks and timers.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Handle
	// Every runs fn on the loop every d until canceled.
	Every(d time.Duration, fn func()) Handle
	// Go runs work off the loop, then runs done on the loop.
	Go(work func(), done func())
	// Do runs fn on the loop and waits for it to return.
	// Must not be called from the loop itself.
	Do(ctx context.Context, fn func()) error
}

// Handle cancels a scheduled task.
type Handle interface {
	// Cancel prevents the task from running again. Idempotent.
	Cancel()
}

// task is a cancelable unit of work shared by Loop and Manual.
type task struct {
	canceled atomic.Bool
	stop     func()
}

func (t *task) Cancel() {
	if t.canceled.Swap(true) {
		return
	}
	if t.stop != nil {
		t.stop()
	}
}

func (t *task) active() bool {
	return !t.canceled.Load()
}

// nopHandle is returned when a task could not be scheduled.
type nopHandle struct{}

func (nopHandle) Cancel() {}

// Stop cancels h if it is non-nil and returns nil so callers can write
// `s.timer = scheduler.Stop(s.timer)`.
func Stop(h Handle) Handle {
	if h != nil {
		h.Cancel()
	}
	return nil
}

package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrLoopClosed is returned by Do once the loop has stopped.
var ErrLoopClosed = errors.New("scheduler loop closed")

// Loop executes posted tasks one at a time on a single goroutine.
type Loop struct {
	tasks chan func()
	ctx   context.Context
	stop  context.CancelFunc
	done  chan struct{}
}

// NewLoop creates a loop with the given task buffer size.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		tasks: make(chan func(), buffer),
		ctx:   ctx,
		stop:  cancel,
		done:  make(chan struct{}),
	}
}

// Run executes tasks until Close is called. Run blocks.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// Start runs the loop on its own goroutine.
func (l *Loop) Start() {
	go l.Run()
}

// Close stops the loop and waits for the running task to finish.
func (l *Loop) Close() {
	l.stop()
	<-l.done
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("scheduler: task panicked: %v", r)
		}
	}()
	fn()
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.ctx.Done():
	}
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	t := &task{}
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			if t.active() {
				t.canceled.Store(true)
				fn()
			}
		})
	})
	t.stop = func() { timer.Stop() }
	return t
}

// Every implements Scheduler.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		return nopHandle{}
	}
	t := &task{}
	ctx, cancel := context.WithCancel(l.ctx)
	t.stop = cancel

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Post(func() {
					if t.active() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

// Go implements Scheduler.
func (l *Loop) Go(work func(), done func()) {
	go func() {
		work()
		if done != nil {
			l.Post(done)
		}
	}()
}

// Do implements Scheduler.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case l.tasks <- func() {
		defer close(finished)
		fn()
	}:
	case <-l.ctx.Done():
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.ctx.Done():
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package loop provides the single-threaded scheduler the scan engine runs on.
//
// Every timer callback, classifier tick, listener and item completion is
// executed on one goroutine, so engine state needs no locking. Collaborators
// that block run elsewhere and Post their results back.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrClosed = errors.New("event loop is closed")

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer before its callback ran.
	Stop() bool
}

// Scheduler is the clock and task queue seen by engine code.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Post(fn func())
}

// Loop runs posted tasks sequentially on the goroutine that calls Run.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return ErrClosed
		case <-l.wake:
			for _, task := range l.take() {
				task()
			}
		}
	}
}

// Close stops Run and drops tasks posted afterwards.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn for execution on the loop. It never blocks and is safe for
// concurrent use, including from tasks already running on the loop.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fire() {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.tasks
	l.tasks = nil
	return tasks
}

// loopTimer guards against a callback that was already queued on the loop
// when Stop was called.
type loopTimer struct {
	timer *time.Timer
	state atomic.Int32
}

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

func (t *loopTimer) fire() bool {
	return t.state.CompareAndSwap(timerPending, timerFired)
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.state.CompareAndSwap(timerPending, timerStopped)
}

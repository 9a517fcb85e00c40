// internal/view/loop.go
//
// UI loop.
//
// Context
// -------
// All view-layer work (context bindings, observer callbacks, scene updates)
// runs on one goroutine, the UI loop.  Native code on any other goroutine
// hands work over with Post, which queues and returns immediately.  Queued
// functions run in FIFO order.
//
// Run drives the loop until its context is cancelled or Stop is called.
// ProcessEvents drains whatever is queued on the calling goroutine, which
// lets tests act as the UI thread without starting Run.
//
// Notes
// -----
//   - The queue is unbounded so Post never blocks.  Work posted after Stop
//     is discarded.
//   - Oxford commas, two spaces after periods.
package view

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopRunning is returned when Run is called on a loop that is already
// running.
var ErrLoopRunning = errors.New("view: loop already running")

// Loop is a single-consumer work queue.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	stopped bool

	wake chan struct{}
	stop chan struct{}
}

// NewLoop returns an idle Loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Post queues fn for the UI loop.  It reports false if the loop has been
// stopped and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// ProcessEvents runs every function queued so far on the caller's
// goroutine and returns how many ran.
func (l *Loop) ProcessEvents() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Run processes queued work until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		if l.ProcessEvents() > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.wake:
		}
	}
}

// Stop ends Run and discards later posts.  Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.stop)
}

// Package poller runs periodic remote queries for the console and hands the
// results to the UI over channels.
package poller

import (
	"context"
	"sync"
	"time"
)

// Task runs fn on a fixed interval inside its own goroutine. It is the one
// place that owns a timer; stopping the task is the only way to stop the
// timer.
//
// fn receives the task context. After Stop that context is done, so fn can
// check it before publishing anything.
type Task struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	ctx      context.Context
	cancel   context.CancelFunc
	kick     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start launches a task. With immediate set fn runs once right away. An
// interval of zero disables the timer; the task then only runs on Kick.
func Start(parent context.Context, name string, interval time.Duration, immediate bool, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go t.loop(immediate)
	return t
}

func (t *Task) loop(immediate bool) {
	defer close(t.done)

	if immediate {
		t.run()
	}

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-tick:
			t.run()
		case <-t.kick:
			t.run()
		}
	}
}

func (t *Task) run() {
	if t.ctx.Err() != nil {
		return
	}
	t.fn(t.ctx)
}

// Kick requests an extra run as soon as the current one finishes. Kicks
// that arrive while one is already pending collapse into it.
func (t *Task) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Stop cancels the task. It is safe to call more than once and returns
// without waiting for a run in progress.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Stopped reports whether Stop was called or the parent context ended.
func (t *Task) Stopped() bool {
	return t.ctx.Err() != nil
}

// Name identifies the task in logs.
func (t *Task) Name() string {
	return t.name
}

// Package tasks tracks cancellable background work keyed by id.
package tasks

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownTask = errors.New("unknown task")

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Tracker runs functions in the background and lets callers cancel or
// wait on them by id. A finished task stays queryable until Forget.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*task
}

func NewTracker() *Tracker {
	return &Tracker{tasks: map[string]*task{}}
}

// Start launches fn under a context derived from parent. Starting a
// second task with an id already in flight is an error.
func (t *Tracker) Start(parent context.Context, id string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if existing, ok := t.tasks[id]; ok {
		select {
		case <-existing.done:
			// finished earlier run, replace it
		default:
			t.mu.Unlock()
			cancel()
			return errors.New("task already running: " + id)
		}
	}
	entry := &task{cancel: cancel, done: make(chan struct{})}
	t.tasks[id] = entry
	t.mu.Unlock()

	go func() {
		defer close(entry.done)
		defer cancel()
		entry.err = fn(ctx)
	}()
	return nil
}

// Cancel signals the task's context. The task itself decides how to
// unwind; Cancel does not wait for it.
func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	entry, ok := t.tasks[id]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownTask
	}
	entry.cancel()
	return nil
}

// Wait blocks until the task finishes or ctx is done, and returns the
// task's error.
func (t *Tracker) Wait(ctx context.Context, id string) error {
	t.mu.Lock()
	entry, ok := t.tasks[id]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownTask
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-entry.done:
		return entry.err
	}
}

// Running reports whether the task exists and has not finished.
func (t *Tracker) Running(id string) bool {
	t.mu.Lock()
	entry, ok := t.tasks[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-entry.done:
		return false
	default:
		return true
	}
}

// Forget drops a finished task. In-flight tasks are left alone.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.tasks[id]
	if !ok {
		return
	}
	select {
	case <-entry.done:
		delete(t.tasks, id)
	default:
	}
}

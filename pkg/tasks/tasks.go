// Package tasks provides the spawn handle that modules use to launch
// background work (tickers, listeners, service subscriptions). Each spawned
// task gets its own cancellable context; the owner keeps the returned Handle
// and aborts it when the module re-registers or is torn down.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runtime hosts background tasks. It is safe for concurrent use and is
// normally created once at startup.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *slog.Logger

	mu     sync.Mutex
	active map[*Handle]struct{}
}

// New creates a runtime whose tasks are cancelled when parent is done.
// A nil logger uses slog.Default().
func New(parent context.Context, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Runtime{
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
		logger: logger,
		active: make(map[*Handle]struct{}),
	}
}

// Handle controls one spawned task.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Name returns the name the task was spawned with.
func (h *Handle) Name() string { return h.name }

// Abort cancels the task's context. It does not wait for the task to
// return. Calling Abort more than once is a no-op.
func (h *Handle) Abort() { h.cancel() }

// Done is closed once the task function has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task returns or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spawn runs fn in a new goroutine with a child context of the runtime.
// A panic inside fn is recovered and logged so one faulty module cannot
// take down the bar.
func (r *Runtime) Spawn(name string, fn func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(r.ctx)
	h := &Handle{name: name, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.active[h] = struct{}{}
	r.mu.Unlock()

	r.group.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("task panicked", "task", name, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			}
			cancel()
			r.mu.Lock()
			delete(r.active, h)
			r.mu.Unlock()
			close(h.done)
		}()
		fn(ctx)
		return nil
	})
	return h
}

// Active returns the number of tasks that have not yet returned.
func (r *Runtime) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Context returns the runtime's root context.
func (r *Runtime) Context() context.Context { return r.ctx }

// Shutdown cancels every task and waits for them to return, or for ctx to
// expire, whichever comes first.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %d task(s) still running: %w", r.Active(), ctx.Err())
	}
}

// Package modules contains the bar modules. A module owns a piece of bar
// state that only the UI goroutine touches: background tasks spawned at
// registration publish typed messages through a modctx.TypedSender, and
// the UI loop hands each message back to the owning module's Handle.
package modules

import (
	"log/slog"
	"sync"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

// Module is implemented by every bar module.
type Module interface {
	// ID returns the dispatch key; it matches eventbus.ModuleEvent.Key for
	// the module's own messages.
	ID() string

	// Register binds the module to a context and starts its background
	// work. Calling it again replaces the previous task.
	Register(ctx *modctx.Context) error

	// Handle folds a message published by the module's task. It runs on
	// the UI goroutine.
	Handle(msg any)

	// View renders the bar segment. An empty string hides the module.
	View() string

	// Close stops background work.
	Close()
}

// Detailer is implemented by modules that contribute to the popup.
type Detailer interface {
	Detail() string
}

// Urgent is implemented by modules that can ask for attention, for
// example when a reading crosses its alert threshold.
type Urgent interface {
	Urgent() bool
}

// Failure is published by a module task when its source fails. The
// registry records it before passing it to the module.
type Failure struct {
	Err error
}

// taskSlot holds the single background task of a module.
type taskSlot struct {
	mu sync.Mutex
	h  *tasks.Handle
}

// replace aborts the current task, if any, and stores h.
func (s *taskSlot) replace(h *tasks.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h != nil {
		s.h.Abort()
	}
	s.h = h
}

func (s *taskSlot) stop() { s.replace(nil) }

func (s *taskSlot) handle() *tasks.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h
}

// report logs a failed publish. A full queue is expected under load and
// only logged at debug level.
func report(logger *slog.Logger, what string, err error) {
	if err == nil {
		return
	}
	if eventbus.IsQueueFull(err) {
		logger.Debug("bus full, dropped "+what, "error", err)
		return
	}
	logger.Error("failed to publish "+what, "error", err)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

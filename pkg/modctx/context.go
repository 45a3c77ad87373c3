// Package modctx provides the context handed to every bar module at
// registration. It pairs a bus producer handle with the task runtime so a
// module can publish typed events and launch background work without
// knowing about the UI loop.
package modctx

import (
	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

// Context holds shared references only; it is safe to copy and to use
// from any goroutine. It does not track or cancel the tasks modules spawn.
type Context struct {
	sender  eventbus.Sender
	runtime *tasks.Runtime
}

// New binds a context to a bus sender and a task runtime.
func New(sender eventbus.Sender, runtime *tasks.Runtime) *Context {
	return &Context{sender: sender, runtime: runtime}
}

// Runtime returns the spawn handle for background work. Tasks spawned
// through it must not hold multi-step invariants across blocking points;
// every publish is a single queue operation, so aborting a task never
// leaves a partial publish behind.
func (c *Context) Runtime() *tasks.Runtime { return c.runtime }

// RequestRedraw publishes a Redraw event.
func (c *Context) RequestRedraw() error {
	return c.sender.Publish(eventbus.Redraw())
}

// TogglePopup publishes a PopupToggle event.
func (c *Context) TogglePopup() error {
	return c.sender.Publish(eventbus.PopupToggle())
}

func (c *Context) publishModuleEvent(ev eventbus.ModuleEvent) error {
	return c.sender.Publish(eventbus.Module(ev))
}

// TypedSender converts a module-local payload into the shared envelope and
// publishes it. It is safe to share between goroutines.
type TypedSender[T any] struct {
	ctx     *Context
	convert func(T) eventbus.ModuleEvent
}

// ModuleSender builds a TypedSender from convert, which must be pure and
// total: it runs on arbitrary producer goroutines.
func ModuleSender[T any](ctx *Context, convert func(T) eventbus.ModuleEvent) *TypedSender[T] {
	return &TypedSender[T]{ctx: ctx, convert: convert}
}

// TrySend converts and publishes payload. It never blocks and never
// retries; the bus error is returned unchanged.
func (s *TypedSender[T]) TrySend(payload T) error {
	return s.ctx.publishModuleEvent(s.convert(payload))
}

package modules

import (
	"context"
	"log/slog"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/service"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

// initRetryDelay is the pause between attempts to publish an Init event
// that did not fit in the bus.
const initRetryDelay = 50 * time.Millisecond

// ServiceView renders a service state. Only Render is required.
type ServiceView[S any] struct {
	Render func(S) string
	Detail func(S) string
	Urgent func(S) bool
}

// ServiceModule mirrors a service subscription into the bus and folds the
// events on the UI goroutine with a service.Tracker.
type ServiceModule[S service.State[U], U any] struct {
	id     eventbus.ModuleID
	svc    service.ReadOnly[S, U]
	view   ServiceView[S]
	logger *slog.Logger

	tracker service.Tracker[S, U]
	runtime *tasks.Runtime
	sender  *modctx.TypedSender[service.Event[S, U]]
	slot    taskSlot
}

// NewServiceModule creates a module for svc published under id.
func NewServiceModule[S service.State[U], U any](id eventbus.ModuleID, svc service.ReadOnly[S, U], view ServiceView[S], logger *slog.Logger) *ServiceModule[S, U] {
	return &ServiceModule[S, U]{
		id:     id,
		svc:    svc,
		view:   view,
		logger: orDefault(logger).With("module", string(id)),
	}
}

// ID implements Module.
func (m *ServiceModule[S, U]) ID() string { return string(m.id) }

// Register implements Module. A dropped Init is retried until it is
// accepted because every later update depends on it; dropped updates are
// not.
func (m *ServiceModule[S, U]) Register(ctx *modctx.Context) error {
	m.sender = modctx.ModuleSender(ctx, eventbus.Wrap[service.Event[S, U]](m.id))
	m.runtime = ctx.Runtime()
	sender := m.sender
	m.slot.replace(ctx.Runtime().Spawn(string(m.id), func(tctx context.Context) {
		for ev := range m.svc.Subscribe(tctx) {
			if ev.Kind == service.KindInit {
				m.publishInit(tctx, sender, ev)
				continue
			}
			report(m.logger, ev.Kind.String()+" event", sender.TrySend(ev))
		}
	}))
	return nil
}

func (m *ServiceModule[S, U]) publishInit(ctx context.Context, sender *modctx.TypedSender[service.Event[S, U]], ev service.Event[S, U]) {
	for {
		err := sender.TrySend(ev)
		if err == nil || !eventbus.IsQueueFull(err) {
			report(m.logger, "init event", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(initRetryDelay):
		}
	}
}

// Handle implements Module.
func (m *ServiceModule[S, U]) Handle(msg any) {
	ev, ok := msg.(service.Event[S, U])
	if !ok {
		return
	}
	if ev.Kind == service.KindError {
		m.logger.Warn("service error", "error", ev.Err)
	}
	m.tracker.Apply(ev)
}

// State returns the folded state.
func (m *ServiceModule[S, U]) State() (S, bool) { return m.tracker.State() }

// Err returns the last reported error.
func (m *ServiceModule[S, U]) Err() error { return m.tracker.Err() }

// View implements Module. Before the first Init the module shows "…",
// or "!" if the service has only reported errors.
func (m *ServiceModule[S, U]) View() string {
	st, ok := m.tracker.State()
	if !ok {
		if m.tracker.Err() != nil {
			return "!"
		}
		return "…"
	}
	return m.view.Render(st)
}

// Detail implements Detailer.
func (m *ServiceModule[S, U]) Detail() string {
	st, ok := m.tracker.State()
	if !ok || m.view.Detail == nil {
		if err := m.tracker.Err(); err != nil {
			return string(m.id) + ": " + err.Error()
		}
		return ""
	}
	return m.view.Detail(st)
}

// Urgent implements Urgent.
func (m *ServiceModule[S, U]) Urgent() bool {
	st, ok := m.tracker.State()
	return ok && m.view.Urgent != nil && m.view.Urgent(st)
}

// Close implements Module.
func (m *ServiceModule[S, U]) Close() { m.slot.stop() }

// SendCommand runs cmd against svc on a spawned task and publishes the
// resulting event to m. It reports false before m is registered.
func SendCommand[S service.State[U], U, C any](m *ServiceModule[S, U], svc service.ReadWrite[S, U, C], cmd C) bool {
	if m.runtime == nil || m.sender == nil {
		return false
	}
	sender := m.sender
	m.runtime.Spawn(string(m.id)+".command", func(ctx context.Context) {
		for ev := range svc.Command(ctx, cmd) {
			report(m.logger, "command result", sender.TrySend(ev))
		}
	})
	return true
}

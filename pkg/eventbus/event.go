// Package eventbus implements the bounded, coalescing mailbox that connects
// background producers (modules, listeners, services) to the single UI
// consumer. Producers publish through a Sender; the UI drains a Receiver once
// per tick and never blocks waiting for events.
package eventbus

import "fmt"

// Kind identifies the variant carried by a BusEvent.
type Kind int

const (
	// KindRedraw requests a redraw of the bar surface.
	KindRedraw Kind = iota
	// KindPopupToggle toggles popup menu visibility.
	KindPopupToggle
	// KindModule carries a module-level payload.
	KindModule
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRedraw:
		return "redraw"
	case KindPopupToggle:
		return "popup_toggle"
	case KindModule:
		return "module"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ModuleID names the module kind that owns a ModuleEvent.
type ModuleID string

// Module identities known to the bar.
const (
	Clock          ModuleID = "clock"
	WindowTitle    ModuleID = "window_title"
	Workspaces     ModuleID = "workspaces"
	KeyboardLayout ModuleID = "keyboard_layout"
	KeyboardSubmap ModuleID = "keyboard_submap"
	SystemInfo     ModuleID = "system_info"
	Network        ModuleID = "network"
	Kube           ModuleID = "kube"
	Privacy        ModuleID = "privacy"
	Custom         ModuleID = "custom"
)

// ModuleEvent is the envelope for module-local messages. Message holds the
// owning module's own message type; Name is only set for custom modules,
// which share a single ModuleID.
type ModuleEvent struct {
	ID      ModuleID
	Name    string
	Message any
}

// Key returns the dispatch key for the event: the module ID, or
// "custom:<name>" for named custom modules.
func (e ModuleEvent) Key() string {
	if e.ID == Custom && e.Name != "" {
		return string(Custom) + ":" + e.Name
	}
	return string(e.ID)
}

// Wrap returns a conversion from a module-local payload into a ModuleEvent
// tagged with id. The returned function is pure and never panics, so it is
// safe to call from any producer goroutine.
func Wrap[T any](id ModuleID) func(T) ModuleEvent {
	return func(msg T) ModuleEvent {
		return ModuleEvent{ID: id, Message: msg}
	}
}

// WrapCustom is Wrap for named custom modules.
func WrapCustom[T any](name string) func(T) ModuleEvent {
	return func(msg T) ModuleEvent {
		return ModuleEvent{ID: Custom, Name: name, Message: msg}
	}
}

// BusEvent is a tagged union of Redraw, PopupToggle and Module events.
// Values are immutable once created.
type BusEvent struct {
	kind   Kind
	module ModuleEvent
}

// Redraw returns a redraw request.
func Redraw() BusEvent { return BusEvent{kind: KindRedraw} }

// PopupToggle returns a popup visibility toggle.
func PopupToggle() BusEvent { return BusEvent{kind: KindPopupToggle} }

// Module wraps a module event.
func Module(ev ModuleEvent) BusEvent { return BusEvent{kind: KindModule, module: ev} }

// Kind returns the event variant.
func (e BusEvent) Kind() Kind { return e.kind }

// ModuleEvent returns the module payload and true when the event is a
// KindModule event.
func (e BusEvent) ModuleEvent() (ModuleEvent, bool) {
	if e.kind != KindModule {
		return ModuleEvent{}, false
	}
	return e.module, true
}

// String implements fmt.Stringer for log output.
func (e BusEvent) String() string {
	if e.kind == KindModule {
		return fmt.Sprintf("module(%s)", e.module.Key())
	}
	return e.kind.String()
}

// coalescesWith reports whether e can be dropped because tail already
// represents it. Only Redraw and PopupToggle coalesce.
func (e BusEvent) coalescesWith(tail BusEvent) bool {
	switch e.kind {
	case KindRedraw, KindPopupToggle:
		return e.kind == tail.kind
	}
	return false
}

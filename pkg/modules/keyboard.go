package modules

import (
	"context"
	"log/slog"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/hyprland"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

// keyboardTask queries the initial state, then forwards keyboard events
// accepted by keep.
func keyboardTask(
	port hyprland.Port,
	ctx *modctx.Context,
	id eventbus.ModuleID,
	logger *slog.Logger,
	keep func(hyprland.KeyboardEvent) bool,
) func(context.Context) {
	states := modctx.ModuleSender(ctx, eventbus.Wrap[hyprland.KeyboardState](id))
	events := modctx.ModuleSender(ctx, eventbus.Wrap[hyprland.KeyboardEvent](id))
	return func(tctx context.Context) {
		st, err := port.KeyboardState(tctx)
		if err != nil {
			logger.Warn("failed to query keyboard state", "error", err)
		} else {
			report(logger, "keyboard state", states.TrySend(st))
		}
		_ = listener.Run(tctx, listener.Spec[hyprland.KeyboardEvent, hyprland.KeyboardEvent]{
			Name: string(id),
			Open: port.KeyboardEvents,
			Convert: func(ev hyprland.KeyboardEvent) (hyprland.KeyboardEvent, bool) {
				return ev, keep(ev)
			},
			Publish:    events.TrySend,
			RetryDelay: listener.DefaultRetryDelay,
			Logger:     logger,
		})
	}
}

// CycleLayout asks KeyboardLayout to switch to the next layout.
type CycleLayout struct{}

// KeyboardLayout shows the active layout when more than one is configured.
type KeyboardLayout struct {
	port   hyprland.Port
	labels map[string]string
	logger *slog.Logger

	active   string
	multiple bool
	runtime  *tasks.Runtime
	slot     taskSlot
}

// NewKeyboardLayout creates the module. labels maps compositor layout
// names to display labels.
func NewKeyboardLayout(port hyprland.Port, labels map[string]string, logger *slog.Logger) *KeyboardLayout {
	return &KeyboardLayout{
		port:   port,
		labels: labels,
		active: "unknown",
		logger: orDefault(logger).With("module", "keyboard_layout"),
	}
}

// ID implements Module.
func (k *KeyboardLayout) ID() string { return string(eventbus.KeyboardLayout) }

// Register implements Module.
func (k *KeyboardLayout) Register(ctx *modctx.Context) error {
	k.runtime = ctx.Runtime()
	k.slot.replace(ctx.Runtime().Spawn("keyboard_layout",
		keyboardTask(k.port, ctx, eventbus.KeyboardLayout, k.logger, func(ev hyprland.KeyboardEvent) bool {
			return ev.Kind != hyprland.SubmapChanged
		})))
	return nil
}

// Handle implements Module.
func (k *KeyboardLayout) Handle(msg any) {
	switch m := msg.(type) {
	case hyprland.KeyboardState:
		k.active = m.ActiveLayout
		k.multiple = m.MultipleLayouts
	case hyprland.KeyboardEvent:
		switch m.Kind {
		case hyprland.LayoutChanged:
			k.active = m.Layout
		case hyprland.LayoutConfigurationChanged:
			k.multiple = m.MultipleLayouts
		}
	case CycleLayout:
		k.SwitchLayout()
	}
}

// Active returns the raw layout name.
func (k *KeyboardLayout) Active() string { return k.active }

// View implements Module.
func (k *KeyboardLayout) View() string {
	if !k.multiple {
		return ""
	}
	if label, ok := k.labels[k.active]; ok {
		return label
	}
	return k.active
}

// SwitchLayout cycles to the next layout on a spawned task.
func (k *KeyboardLayout) SwitchLayout() bool {
	if k.runtime == nil {
		return false
	}
	k.runtime.Spawn("keyboard_layout.switch", func(ctx context.Context) {
		if err := k.port.SwitchKeyboardLayout(ctx); err != nil {
			k.logger.Error("failed to switch keyboard layout", "error", err)
		}
	})
	return true
}

// Close implements Module.
func (k *KeyboardLayout) Close() { k.slot.stop() }

// KeyboardSubmap shows the active submap; it is hidden in the default
// submap.
type KeyboardSubmap struct {
	port   hyprland.Port
	logger *slog.Logger

	submap string
	slot   taskSlot
}

// NewKeyboardSubmap creates the module.
func NewKeyboardSubmap(port hyprland.Port, logger *slog.Logger) *KeyboardSubmap {
	return &KeyboardSubmap{port: port, logger: orDefault(logger).With("module", "keyboard_submap")}
}

// ID implements Module.
func (k *KeyboardSubmap) ID() string { return string(eventbus.KeyboardSubmap) }

// Register implements Module.
func (k *KeyboardSubmap) Register(ctx *modctx.Context) error {
	k.slot.replace(ctx.Runtime().Spawn("keyboard_submap",
		keyboardTask(k.port, ctx, eventbus.KeyboardSubmap, k.logger, func(ev hyprland.KeyboardEvent) bool {
			return ev.Kind == hyprland.SubmapChanged
		})))
	return nil
}

// Handle implements Module.
func (k *KeyboardSubmap) Handle(msg any) {
	switch m := msg.(type) {
	case hyprland.KeyboardState:
		k.submap = m.Submap
	case hyprland.KeyboardEvent:
		if m.Kind == hyprland.SubmapChanged {
			k.submap = m.Submap
		}
	}
}

// View implements Module.
func (k *KeyboardSubmap) View() string { return k.submap }

// Close implements Module.
func (k *KeyboardSubmap) Close() { k.slot.stop() }

package modules

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/x/ansi"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/hyprland"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
)

// Window title display modes.
const (
	TitleModeTitle = "title"
	TitleModeClass = "class"
)

// DefaultTitleLength is the default truncation length.
const DefaultTitleLength = 150

// WindowChanged carries the focused window after a refresh; Window is nil
// when nothing is focused.
type WindowChanged struct {
	Window *hyprland.WindowInfo
}

// WindowTitle shows the focused window's title or class.
type WindowTitle struct {
	port     hyprland.Port
	mode     string
	truncate int
	logger   *slog.Logger

	window *hyprland.WindowInfo
	slot   taskSlot
}

// NewWindowTitle creates the module. mode is TitleModeTitle or
// TitleModeClass; truncate <= 0 uses DefaultTitleLength.
func NewWindowTitle(port hyprland.Port, mode string, truncate int, logger *slog.Logger) *WindowTitle {
	if mode != TitleModeClass {
		mode = TitleModeTitle
	}
	if truncate <= 0 {
		truncate = DefaultTitleLength
	}
	return &WindowTitle{
		port:     port,
		mode:     mode,
		truncate: truncate,
		logger:   orDefault(logger).With("module", "window_title"),
	}
}

// ID implements Module.
func (w *WindowTitle) ID() string { return string(eventbus.WindowTitle) }

// Register implements Module. The task publishes the current window, then
// refreshes it on every window event.
func (w *WindowTitle) Register(ctx *modctx.Context) error {
	sender := modctx.ModuleSender(ctx, eventbus.Wrap[WindowChanged](eventbus.WindowTitle))
	w.slot.replace(ctx.Runtime().Spawn("window_title", func(tctx context.Context) {
		if msg, ok := w.refresh(tctx); ok {
			report(w.logger, "window title", sender.TrySend(msg))
		}
		_ = listener.Run(tctx, listener.Spec[hyprland.WindowEvent, WindowChanged]{
			Name: "window_title",
			Open: w.port.WindowEvents,
			Convert: func(hyprland.WindowEvent) (WindowChanged, bool) {
				return w.refresh(tctx)
			},
			Publish:    sender.TrySend,
			RetryDelay: listener.DefaultRetryDelay,
			Logger:     w.logger,
		})
	}))
	return nil
}

func (w *WindowTitle) refresh(ctx context.Context) (WindowChanged, bool) {
	win, err := w.port.ActiveWindow(ctx)
	if err != nil {
		w.logger.Warn("failed to query active window", "error", err)
		return WindowChanged{}, false
	}
	return WindowChanged{Window: win}, true
}

// Handle implements Module.
func (w *WindowTitle) Handle(msg any) {
	if m, ok := msg.(WindowChanged); ok {
		w.window = m.Window
	}
}

// View implements Module.
func (w *WindowTitle) View() string {
	if w.window == nil {
		return ""
	}
	text := w.window.Title
	if w.mode == TitleModeClass {
		text = w.window.Class
	}
	return ansi.Truncate(text, w.truncate, "...")
}

// Close implements Module.
func (w *WindowTitle) Close() { w.slot.stop() }

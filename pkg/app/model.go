package app

import (
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/modules"
	"github.com/RAprogramm/hydebar-sub001/pkg/theme"
)

// Controls are the interactive handles the key bindings drive. Nil
// fields disable the binding.
type Controls struct {
	Workspaces *modules.Workspaces
	Keyboard   *modules.KeyboardLayout
	// ToggleNetwork connects or disconnects the tailnet.
	ToggleNetwork func() bool
}

// Drainer is the consumer side of the bus; eventbus.Receiver implements it.
type Drainer interface {
	Drain() ([]eventbus.BusEvent, error)
}

// Options configures a Model.
type Options struct {
	Receiver Drainer
	// Context publishes popup toggles from key presses.
	Context  *modctx.Context
	Registry *modules.Registry
	Tick     time.Duration
	Controls Controls
	// Theme defaults to theme.Get("default").
	Theme  *theme.Theme
	Logger *slog.Logger
}

// Model is the root bubbletea model.
type Model struct {
	recv     Drainer
	ctx      *modctx.Context
	reg      *modules.Registry
	tick     time.Duration
	controls Controls
	styles   theme.Styles
	logger   *slog.Logger

	width       int
	popup       bool
	dirty       bool
	frame       string
	frames      int
	drained     int
	drainErrors int
	quitting    bool
}

// New creates the model. The first frame is rendered on the first tick.
func New(opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	th := theme.Get("default")
	if opts.Theme != nil {
		th = *opts.Theme
	}
	return Model{
		styles:   th.Styles(),
		recv:     opts.Receiver,
		ctx:      opts.Context,
		reg:      opts.Registry,
		tick:     opts.Tick,
		controls: opts.Controls,
		logger:   opts.Logger,
		dirty:    true,
	}
}

// Init starts the drain ticker.
func (m Model) Init() tea.Cmd {
	return TickCmd(m.tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickEvent:
		m.drain()
		m.render()
		return m, TickCmd(m.tick)

	case QuitEvent:
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.dirty = true
		m.render()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// drain empties the bus once. A failed drain is logged and the bar keeps
// running with whatever state it has.
func (m *Model) drain() {
	events, err := m.recv.Drain()
	if err != nil {
		m.drainErrors++
		m.logger.Error("failed to drain event bus", "error", err)
		return
	}
	m.drained += len(events)
	for _, ev := range events {
		switch ev.Kind() {
		case eventbus.KindRedraw:
			m.dirty = true
		case eventbus.KindPopupToggle:
			m.popup = !m.popup
			m.dirty = true
		case eventbus.KindModule:
			me, _ := ev.ModuleEvent()
			if !m.reg.Dispatch(me) {
				m.logger.Debug("no module for event", "key", me.Key())
				continue
			}
			m.dirty = true
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "p":
		if m.ctx != nil {
			if err := m.ctx.TogglePopup(); err != nil {
				m.logger.Warn("popup toggle dropped", "error", err)
			}
		}
	case "left":
		if ws := m.controls.Workspaces; ws != nil {
			ws.Step(-1)
		}
	case "right":
		if ws := m.controls.Workspaces; ws != nil {
			ws.Step(1)
		}
	case "l":
		if kb := m.controls.Keyboard; kb != nil {
			kb.SwitchLayout()
		}
	case "c":
		if m.controls.ToggleNetwork != nil {
			m.controls.ToggleNetwork()
		}
	}
	return m, nil
}

// render rebuilds the cached frame when something changed.
func (m *Model) render() {
	if !m.dirty {
		return
	}
	m.dirty = false
	m.frames++

	segments := m.reg.Views()
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		style := m.styles.Segment
		if s.Urgent {
			style = m.styles.Urgent
		}
		parts = append(parts, style.Render(s.Text))
	}
	bar := m.styles.Bar.Render(strings.Join(parts, m.styles.Separator.Render("│")))
	if m.width > 0 {
		bar = lipgloss.PlaceHorizontal(m.width, lipgloss.Left, bar)
	}

	if !m.popup {
		m.frame = bar
		return
	}
	var sections []string
	for _, d := range m.reg.Details() {
		sections = append(sections, m.styles.Title.Render(d.ID)+"\n"+d.Text)
	}
	if len(sections) == 0 {
		sections = append(sections, "nothing to show")
	}
	m.frame = lipgloss.JoinVertical(lipgloss.Left, bar, m.styles.Popup.Render(strings.Join(sections, "\n\n")))
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.frame
}

// PopupVisible reports whether the detail popup is shown.
func (m Model) PopupVisible() bool { return m.popup }

// Frames returns the number of frames rendered.
func (m Model) Frames() int { return m.frames }

// Drained returns the number of bus events consumed.
func (m Model) Drained() int { return m.drained }

// DrainErrors returns the number of failed drains.
func (m Model) DrainErrors() int { return m.drainErrors }

// Quitting reports whether the model has asked to exit.
func (m Model) Quitting() bool { return m.quitting }

package modules

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/hyprland"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

// Workspace visibility modes.
const (
	VisibilityAll             = "all"
	VisibilityMonitorSpecific = "monitor_specific"
)

// Workspace is one entry of the workspace strip.
type Workspace struct {
	ID   int
	Name string
	// MonitorID is -1 when unknown.
	MonitorID int
	Monitor   string
	Active    bool
	Windows   int
}

// Special reports whether w is a special (scratchpad) workspace.
func (w Workspace) Special() bool { return w.ID < 0 }

// WorkspacesOptions configures the workspace strip.
type WorkspacesOptions struct {
	VisibilityMode string
	// Monitor is the output this bar belongs to; used by
	// VisibilityMonitorSpecific.
	Monitor       string
	EnableFilling bool
	MaxWorkspaces int
}

// MapSnapshot converts a compositor snapshot into the strip: duplicates
// dropped, special workspaces named after their suffix and active when
// shown on any monitor, and with filling enabled, placeholders for every
// missing ID from 1 to the highest ID (or MaxWorkspaces when larger).
// Entries are sorted by ID, so special workspaces come first.
func MapSnapshot(snap hyprland.WorkspaceSnapshot, opts WorkspacesOptions) []Workspace {
	seen := make(map[int]bool, len(snap.Workspaces))
	var result []Workspace
	existing := make(map[int]bool)
	maxID := 0

	for _, w := range snap.Workspaces {
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true

		ws := Workspace{
			ID:        w.ID,
			Name:      w.Name,
			MonitorID: w.MonitorID,
			Monitor:   w.MonitorName,
			Windows:   w.Windows,
		}
		if ws.Special() {
			if i := strings.LastIndex(w.Name, ":"); i >= 0 {
				ws.Name = w.Name[i+1:]
			}
			for _, m := range snap.Monitors {
				if m.SpecialWorkspaceID == w.ID {
					ws.Active = true
					break
				}
			}
		} else {
			ws.Active = snap.HasActive && snap.ActiveWorkspaceID == w.ID
			existing[w.ID] = true
			maxID = max(maxID, w.ID)
		}
		result = append(result, ws)
	}

	if opts.EnableFilling && len(existing) > 0 {
		maxID = max(maxID, opts.MaxWorkspaces)
		for id := 1; id <= maxID; id++ {
			if !existing[id] {
				result = append(result, Workspace{ID: id, Name: strconv.Itoa(id), MonitorID: -1})
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// WorkspacesChanged carries a fresh snapshot.
type WorkspacesChanged struct {
	Snapshot hyprland.WorkspaceSnapshot
}

// SwitchWorkspace asks the strip to change to ID. Requests from outside
// the UI loop are published as this message so the strip's state is only
// read on the UI goroutine.
type SwitchWorkspace struct {
	ID int
}

// Workspaces shows the workspace strip and switches workspaces.
type Workspaces struct {
	port   hyprland.Port
	opts   WorkspacesOptions
	logger *slog.Logger

	items   []Workspace
	runtime *tasks.Runtime
	slot    taskSlot
}

// NewWorkspaces creates the module.
func NewWorkspaces(port hyprland.Port, opts WorkspacesOptions, logger *slog.Logger) *Workspaces {
	if opts.VisibilityMode == "" {
		opts.VisibilityMode = VisibilityAll
	}
	return &Workspaces{
		port:   port,
		opts:   opts,
		logger: orDefault(logger).With("module", "workspaces"),
	}
}

// ID implements Module.
func (w *Workspaces) ID() string { return string(eventbus.Workspaces) }

// Register implements Module. Every workspace event triggers a fresh
// snapshot query on the task goroutine.
func (w *Workspaces) Register(ctx *modctx.Context) error {
	sender := modctx.ModuleSender(ctx, eventbus.Wrap[WorkspacesChanged](eventbus.Workspaces))
	w.runtime = ctx.Runtime()
	w.slot.replace(ctx.Runtime().Spawn("workspaces", func(tctx context.Context) {
		if msg, ok := w.snapshot(tctx); ok {
			report(w.logger, "workspace snapshot", sender.TrySend(msg))
		}
		_ = listener.Run(tctx, listener.Spec[hyprland.WorkspaceEvent, WorkspacesChanged]{
			Name: "workspaces",
			Open: w.port.WorkspaceEvents,
			Convert: func(hyprland.WorkspaceEvent) (WorkspacesChanged, bool) {
				return w.snapshot(tctx)
			},
			Publish:    sender.TrySend,
			RetryDelay: listener.DefaultRetryDelay,
			Logger:     w.logger,
		})
	}))
	return nil
}

func (w *Workspaces) snapshot(ctx context.Context) (WorkspacesChanged, bool) {
	snap, err := w.port.WorkspaceSnapshot(ctx)
	if err != nil {
		w.logger.Error("failed to retrieve workspace snapshot", "error", err)
		return WorkspacesChanged{}, false
	}
	return WorkspacesChanged{Snapshot: snap}, true
}

// Handle implements Module.
func (w *Workspaces) Handle(msg any) {
	switch m := msg.(type) {
	case WorkspacesChanged:
		w.items = MapSnapshot(m.Snapshot, w.opts)
	case SwitchWorkspace:
		w.ChangeWorkspace(m.ID)
	}
}

// Items returns the visible entries.
func (w *Workspaces) Items() []Workspace {
	var out []Workspace
	for _, ws := range w.items {
		if w.visible(ws) {
			out = append(out, ws)
		}
	}
	return out
}

func (w *Workspaces) visible(ws Workspace) bool {
	if w.opts.VisibilityMode != VisibilityMonitorSpecific || w.opts.Monitor == "" {
		return true
	}
	return ws.Monitor == "" || ws.Monitor == w.opts.Monitor
}

// View implements Module. The active workspace is bracketed and empty
// workspaces are dimmed with a trailing dot.
func (w *Workspaces) View() string {
	items := w.Items()
	parts := make([]string, 0, len(items))
	for _, ws := range items {
		label := ws.Name
		if ws.Windows == 0 && !ws.Special() {
			label += "."
		}
		if ws.Active {
			label = "[" + label + "]"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

// Active returns the active regular workspace.
func (w *Workspaces) Active() (Workspace, bool) {
	for _, ws := range w.items {
		if ws.Active && !ws.Special() {
			return ws, true
		}
	}
	return Workspace{}, false
}

// ChangeWorkspace switches to a regular workspace. Switching to the
// active workspace or to a non-positive ID is a no-op. The command runs
// on a spawned task and reports whether one was started.
func (w *Workspaces) ChangeWorkspace(id int) bool {
	if id <= 0 || w.runtime == nil {
		return false
	}
	if cur, ok := w.Active(); ok && cur.ID == id {
		return false
	}
	w.runtime.Spawn("workspaces.change", func(ctx context.Context) {
		w.logger.Debug("changing workspace", "id", id)
		if err := w.port.ChangeWorkspace(ctx, hyprland.WorkspaceByID(id)); err != nil {
			w.logger.Error("failed to dispatch workspace change", "error", err)
		}
	})
	return true
}

// Step moves delta workspaces from the active one, skipping specials.
func (w *Workspaces) Step(delta int) bool {
	var regular []Workspace
	for _, ws := range w.Items() {
		if !ws.Special() {
			regular = append(regular, ws)
		}
	}
	if len(regular) == 0 {
		return false
	}
	cur, ok := w.Active()
	idx := 0
	if ok {
		for i, ws := range regular {
			if ws.ID == cur.ID {
				idx = i
				break
			}
		}
	}
	idx = ((idx+delta)%len(regular) + len(regular)) % len(regular)
	return w.ChangeWorkspace(regular[idx].ID)
}

// ToggleSpecial shows or hides a special workspace on its monitor.
func (w *Workspaces) ToggleSpecial(id int) bool {
	if w.runtime == nil {
		return false
	}
	for _, ws := range w.items {
		if ws.ID != id || !ws.Special() {
			continue
		}
		mon := hyprland.MonitorByName(ws.Monitor)
		if ws.MonitorID >= 0 {
			mon = hyprland.MonitorByID(ws.MonitorID)
		}
		name := ws.Name
		w.runtime.Spawn("workspaces.toggle_special", func(ctx context.Context) {
			w.logger.Debug("toggle special workspace", "id", id)
			if err := w.port.FocusAndToggleSpecialWorkspace(ctx, mon, name); err != nil {
				w.logger.Error("failed to dispatch special workspace toggle", "error", err)
			}
		})
		return true
	}
	return false
}

// Close implements Module.
func (w *Workspaces) Close() { w.slot.stop() }

package hyprland

import (
	"fmt"
	"strconv"
)

// WindowInfo describes the focused window.
type WindowInfo struct {
	Title string
	Class string
}

// MonitorInfo describes one output.
type MonitorInfo struct {
	ID   int
	Name string
	// SpecialWorkspaceID is the special workspace shown on the monitor, or
	// 0 when none is open.
	SpecialWorkspaceID int
}

// WorkspaceInfo describes one workspace as reported by the compositor.
type WorkspaceInfo struct {
	ID   int
	Name string
	// MonitorID is -1 when the workspace is not assigned to a monitor.
	MonitorID   int
	MonitorName string
	Windows     int
}

// WorkspaceSnapshot is an immutable view of monitors and workspaces taken
// in a single query round.
type WorkspaceSnapshot struct {
	Monitors   []MonitorInfo
	Workspaces []WorkspaceInfo
	// ActiveWorkspaceID is valid only when HasActive is true.
	ActiveWorkspaceID int
	HasActive         bool
}

// KeyboardState is the keyboard configuration known to the compositor.
type KeyboardState struct {
	ActiveLayout    string
	MultipleLayouts bool
	// Submap is empty when the default submap is active.
	Submap string
}

// MonitorSelector picks a monitor by numeric ID or by name.
type MonitorSelector struct {
	id     int
	name   string
	byName bool
}

// MonitorByID selects a monitor by ID.
func MonitorByID(id int) MonitorSelector { return MonitorSelector{id: id} }

// MonitorByName selects a monitor by connector name.
func MonitorByName(name string) MonitorSelector { return MonitorSelector{name: name, byName: true} }

func (s MonitorSelector) String() string {
	if s.byName {
		return "monitor-name:" + s.name
	}
	return fmt.Sprintf("monitor-id:%d", s.id)
}

// arg renders the selector as a dispatcher argument.
func (s MonitorSelector) arg() string {
	if s.byName {
		return s.name
	}
	return strconv.Itoa(s.id)
}

// WorkspaceSelector picks a workspace by numeric ID or by name.
type WorkspaceSelector struct {
	id     int
	name   string
	byName bool
}

// WorkspaceByID selects a workspace by ID.
func WorkspaceByID(id int) WorkspaceSelector { return WorkspaceSelector{id: id} }

// WorkspaceByName selects a named workspace.
func WorkspaceByName(name string) WorkspaceSelector {
	return WorkspaceSelector{name: name, byName: true}
}

// ID returns the numeric ID and true for ID selectors.
func (s WorkspaceSelector) ID() (int, bool) { return s.id, !s.byName }

// Name returns the name and true for name selectors.
func (s WorkspaceSelector) Name() (string, bool) { return s.name, s.byName }

func (s WorkspaceSelector) String() string {
	if s.byName {
		return "workspace-name:" + s.name
	}
	return fmt.Sprintf("workspace-id:%d", s.id)
}

func (s WorkspaceSelector) arg() string {
	if s.byName {
		return "name:" + s.name
	}
	return strconv.Itoa(s.id)
}

// WindowEvent is a window-category notification.
type WindowEvent int

const (
	ActiveWindowChanged WindowEvent = iota
	WorkspaceFocusChanged
	WindowClosed
)

func (e WindowEvent) String() string {
	switch e {
	case ActiveWindowChanged:
		return "active_window_changed"
	case WorkspaceFocusChanged:
		return "workspace_focus_changed"
	case WindowClosed:
		return "window_closed"
	}
	return fmt.Sprintf("window_event(%d)", int(e))
}

// WorkspaceEvent is a workspace-category notification.
type WorkspaceEvent int

const (
	WorkspaceAdded WorkspaceEvent = iota
	WorkspaceChanged
	WorkspaceRemoved
	WorkspaceMoved
	SpecialChanged
	SpecialRemoved
	WorkspaceWindowOpened
	WorkspaceWindowClosed
	WorkspaceWindowMoved
	ActiveMonitorChanged
)

var workspaceEventNames = [...]string{
	"added", "changed", "removed", "moved", "special_changed",
	"special_removed", "window_opened", "window_closed", "window_moved",
	"active_monitor_changed",
}

func (e WorkspaceEvent) String() string {
	if int(e) >= 0 && int(e) < len(workspaceEventNames) {
		return workspaceEventNames[e]
	}
	return fmt.Sprintf("workspace_event(%d)", int(e))
}

// KeyboardEventKind discriminates KeyboardEvent.
type KeyboardEventKind int

const (
	LayoutChanged KeyboardEventKind = iota
	LayoutConfigurationChanged
	SubmapChanged
)

// KeyboardEvent is a keyboard-category notification. Layout is set for
// LayoutChanged, MultipleLayouts for LayoutConfigurationChanged and Submap
// (empty on reset) for SubmapChanged.
type KeyboardEvent struct {
	Kind            KeyboardEventKind
	Layout          string
	MultipleLayouts bool
	Submap          string
}

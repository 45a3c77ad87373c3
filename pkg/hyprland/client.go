// Package hyprland talks to the Hyprland compositor over its two unix
// sockets: a request/reply command socket used for queries and
// dispatchers, and an event socket that streams "EVENT>>DATA" lines.
//
// Every blocking query goes through the bridge package, so callers get a
// bounded wait and retries with linear backoff.
package hyprland

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
)

// Operation names used in errors and logs.
const (
	opActiveWindow      = "active_window"
	opWorkspaceSnapshot = "workspace_snapshot"
	opChangeWorkspace   = "change_workspace"
	opToggleSpecial     = "toggle_special_workspace"
	opKeyboardState     = "keyboard_state"
	opSwitchLayout      = "switch_keyboard_layout"
	opWindowEvents      = "window_events"
	opWorkspaceEvents   = "workspace_events"
	opKeyboardEvents    = "keyboard_events"
)

// Port is everything the bar modules need from the compositor. All
// methods are safe for concurrent use.
type Port interface {
	WindowEvents(ctx context.Context) (listener.Stream[WindowEvent], error)
	WorkspaceEvents(ctx context.Context) (listener.Stream[WorkspaceEvent], error)
	KeyboardEvents(ctx context.Context) (listener.Stream[KeyboardEvent], error)

	// ActiveWindow returns nil when no window has focus.
	ActiveWindow(ctx context.Context) (*WindowInfo, error)
	WorkspaceSnapshot(ctx context.Context) (WorkspaceSnapshot, error)
	ChangeWorkspace(ctx context.Context, ws WorkspaceSelector) error
	FocusAndToggleSpecialWorkspace(ctx context.Context, mon MonitorSelector, name string) error
	KeyboardState(ctx context.Context) (KeyboardState, error)
	SwitchKeyboardLayout(ctx context.Context) error
}

// Client implements Port against a running compositor.
type Client struct {
	cfg    bridge.Config
	logger *slog.Logger
	dir    string
}

// Option configures a Client.
type Option func(*Client)

// WithConfig sets timeouts and retry policy.
func WithConfig(cfg bridge.Config) Option {
	return func(c *Client) { c.cfg = cfg.Normalized() }
}

// WithLogger sets the logger used for retries and stream diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSocketDir overrides socket discovery.
func WithSocketDir(dir string) Option {
	return func(c *Client) { c.dir = dir }
}

// NewClient creates a client. Without WithSocketDir the socket directory
// is resolved from the environment, which fails with ErrNoInstance
// outside a Hyprland session.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{cfg: bridge.DefaultConfig(), logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	if c.dir == "" {
		dir, err := SocketDir()
		if err != nil {
			return nil, err
		}
		c.dir = dir
	}
	c.logger = c.logger.With("component", "hyprland")
	return c, nil
}

// Config returns the effective bridge configuration.
func (c *Client) Config() bridge.Config { return c.cfg }

func (c *Client) query(op, cmd string) ([]byte, error) {
	reply, err := request(c.dir, cmd, c.cfg.RequestTimeout)
	if err != nil {
		return nil, bridge.Backend(op, err)
	}
	return reply, nil
}

func (c *Client) queryJSON(op, cmd string, v any) error {
	reply, err := c.query(op, cmd)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, v); err != nil {
		return bridge.Backend(op, fmt.Errorf("decode %s: %w", cmd, err))
	}
	return nil
}

func (c *Client) dispatch(op, cmd string) error {
	reply, err := c.query(op, cmd)
	if err != nil {
		return err
	}
	return bridge.Backend(op, expectOK(reply))
}

type clientJSON struct {
	Title string `json:"title"`
	Class string `json:"class"`
}

// ActiveWindow implements Port.
func (c *Client) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	return bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opActiveWindow, func() (*WindowInfo, error) {
		reply, err := c.query(opActiveWindow, "j/activewindow")
		if err != nil {
			return nil, err
		}
		if isEmptyObject(reply) {
			return nil, nil
		}
		var w clientJSON
		if err := json.Unmarshal(reply, &w); err != nil {
			return nil, bridge.Backend(opActiveWindow, err)
		}
		return &WindowInfo{Title: w.Title, Class: w.Class}, nil
	})
}

type workspaceRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type monitorJSON struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	SpecialWorkspace workspaceRef `json:"specialWorkspace"`
}

type workspaceJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Monitor   string `json:"monitor"`
	MonitorID *int   `json:"monitorID"`
	Windows   int    `json:"windows"`
}

// WorkspaceSnapshot implements Port.
func (c *Client) WorkspaceSnapshot(ctx context.Context) (WorkspaceSnapshot, error) {
	return bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opWorkspaceSnapshot, func() (WorkspaceSnapshot, error) {
		var (
			monitors   []monitorJSON
			workspaces []workspaceJSON
			active     workspaceRef
		)
		if err := c.queryJSON(opWorkspaceSnapshot, "j/monitors", &monitors); err != nil {
			return WorkspaceSnapshot{}, err
		}
		if err := c.queryJSON(opWorkspaceSnapshot, "j/workspaces", &workspaces); err != nil {
			return WorkspaceSnapshot{}, err
		}
		if err := c.queryJSON(opWorkspaceSnapshot, "j/activeworkspace", &active); err != nil {
			return WorkspaceSnapshot{}, err
		}

		snap := WorkspaceSnapshot{
			Monitors:          make([]MonitorInfo, 0, len(monitors)),
			Workspaces:        make([]WorkspaceInfo, 0, len(workspaces)),
			ActiveWorkspaceID: active.ID,
			HasActive:         true,
		}
		for _, m := range monitors {
			snap.Monitors = append(snap.Monitors, MonitorInfo{
				ID:                 m.ID,
				Name:               m.Name,
				SpecialWorkspaceID: m.SpecialWorkspace.ID,
			})
		}
		for _, w := range workspaces {
			monID := -1
			if w.MonitorID != nil && *w.MonitorID >= 0 {
				monID = *w.MonitorID
			}
			snap.Workspaces = append(snap.Workspaces, WorkspaceInfo{
				ID:          w.ID,
				Name:        w.Name,
				MonitorID:   monID,
				MonitorName: w.Monitor,
				Windows:     w.Windows,
			})
		}
		return snap, nil
	})
}

// ChangeWorkspace implements Port.
func (c *Client) ChangeWorkspace(ctx context.Context, ws WorkspaceSelector) error {
	_, err := bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opChangeWorkspace, func() (struct{}, error) {
		return struct{}{}, c.dispatch(opChangeWorkspace, "dispatch workspace "+ws.arg())
	})
	return err
}

// FocusAndToggleSpecialWorkspace implements Port. It focuses mon first so
// the special workspace opens on that output.
func (c *Client) FocusAndToggleSpecialWorkspace(ctx context.Context, mon MonitorSelector, name string) error {
	name = strings.TrimPrefix(name, "special:")
	_, err := bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opToggleSpecial, func() (struct{}, error) {
		if err := c.dispatch(opToggleSpecial, "dispatch focusmonitor "+mon.arg()); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.dispatch(opToggleSpecial, "dispatch togglespecialworkspace "+name)
	})
	return err
}

type optionJSON struct {
	Str string `json:"str"`
}

type devicesJSON struct {
	Keyboards []struct {
		Name         string `json:"name"`
		ActiveKeymap string `json:"active_keymap"`
		Main         bool   `json:"main"`
	} `json:"keyboards"`
}

// KeyboardState implements Port. The submap is not queryable and is
// always reported empty; it arrives through KeyboardEvents instead.
func (c *Client) KeyboardState(ctx context.Context) (KeyboardState, error) {
	return bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opKeyboardState, func() (KeyboardState, error) {
		multiple, err := c.multipleLayouts()
		if err != nil {
			return KeyboardState{}, err
		}
		var devices devicesJSON
		if err := c.queryJSON(opKeyboardState, "j/devices", &devices); err != nil {
			return KeyboardState{}, err
		}
		layout := "unknown"
		for _, kb := range devices.Keyboards {
			if kb.Main {
				layout = kb.ActiveKeymap
				break
			}
		}
		return KeyboardState{ActiveLayout: layout, MultipleLayouts: multiple}, nil
	})
}

func (c *Client) multipleLayouts() (bool, error) {
	var opt optionJSON
	if err := c.queryJSON(opKeyboardState, "j/getoption input:kb_layout", &opt); err != nil {
		return false, err
	}
	return countLayouts(opt.Str) > 1, nil
}

func countLayouts(value string) int {
	n := 0
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// SwitchKeyboardLayout implements Port.
func (c *Client) SwitchKeyboardLayout(ctx context.Context) error {
	_, err := bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opSwitchLayout, func() (struct{}, error) {
		return struct{}{}, c.dispatch(opSwitchLayout, "switchxkblayout all next")
	})
	return err
}

var _ Port = (*Client)(nil)

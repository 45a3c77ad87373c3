package hyprland

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
)

// splitEvent splits an event line "NAME>>DATA".
func splitEvent(line string) (name, data string, ok bool) {
	name, data, ok = strings.Cut(line, ">>")
	if !ok || name == "" {
		return "", "", false
	}
	return name, data, true
}

func mapWindowEvent(name, _ string) (WindowEvent, bool) {
	switch name {
	case "activewindow":
		return ActiveWindowChanged, true
	case "closewindow":
		return WindowClosed, true
	case "workspace":
		return WorkspaceFocusChanged, true
	}
	return 0, false
}

func mapWorkspaceEvent(name, _ string) (WorkspaceEvent, bool) {
	switch name {
	case "createworkspace":
		return WorkspaceAdded, true
	case "workspace", "renameworkspace":
		return WorkspaceChanged, true
	case "destroyworkspace":
		return WorkspaceRemoved, true
	case "moveworkspace":
		return WorkspaceMoved, true
	case "activespecial":
		return SpecialChanged, true
	case "openwindow":
		return WorkspaceWindowOpened, true
	case "closewindow":
		return WorkspaceWindowClosed, true
	case "movewindow":
		return WorkspaceWindowMoved, true
	case "focusedmon":
		return ActiveMonitorChanged, true
	}
	return 0, false
}

// mapKeyboardEvent handles the events that need no further lookup.
// "activelayout" carries "KEYBOARD,LAYOUT"; the layout may itself contain
// commas, so only the first one separates the fields.
func mapKeyboardEvent(name, data string) (KeyboardEvent, bool) {
	switch name {
	case "activelayout":
		_, layout, ok := strings.Cut(data, ",")
		if !ok {
			layout = data
		}
		return KeyboardEvent{Kind: LayoutChanged, Layout: layout}, true
	case "submap":
		return KeyboardEvent{Kind: SubmapChanged, Submap: data}, true
	}
	return KeyboardEvent{}, false
}

// eventStream reads one connection to the event socket and yields the
// events mapEvent accepts. Unknown event names are skipped.
type eventStream[E any] struct {
	op       string
	conn     net.Conn
	scanner  *bufio.Scanner
	mapEvent func(name, data string) (E, bool)
}

func (c *Client) openEvents(op string) (net.Conn, *bufio.Scanner, error) {
	d := net.Dialer{Timeout: c.cfg.RequestTimeout}
	conn, err := d.Dial("unix", filepath.Join(c.dir, eventSocket))
	if err != nil {
		return nil, nil, bridge.Backend(op, fmt.Errorf("connect to event socket: %w", err))
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	return conn, sc, nil
}

func newEventStream[E any](c *Client, op string, mapEvent func(name, data string) (E, bool)) (listener.Stream[E], error) {
	conn, sc, err := c.openEvents(op)
	if err != nil {
		return nil, err
	}
	return &eventStream[E]{op: op, conn: conn, scanner: sc, mapEvent: mapEvent}, nil
}

// Next implements listener.Stream.
func (s *eventStream[E]) Next(ctx context.Context) (E, error) {
	var zero E
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for s.scanner.Scan() {
		name, data, ok := splitEvent(s.scanner.Text())
		if !ok {
			continue
		}
		if ev, ok := s.mapEvent(name, data); ok {
			return ev, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return zero, bridge.Backend(s.op, err)
	}
	return zero, io.EOF
}

// Close implements listener.Stream.
func (s *eventStream[E]) Close() error { return s.conn.Close() }

// WindowEvents implements Port.
func (c *Client) WindowEvents(ctx context.Context) (listener.Stream[WindowEvent], error) {
	return newEventStream(c, opWindowEvents, mapWindowEvent)
}

// WorkspaceEvents implements Port.
func (c *Client) WorkspaceEvents(ctx context.Context) (listener.Stream[WorkspaceEvent], error) {
	return newEventStream(c, opWorkspaceEvents, mapWorkspaceEvent)
}

// KeyboardEvents implements Port. A configuration reload re-reads the
// layout list, so LayoutConfigurationChanged reports whether more than one
// layout is now configured.
func (c *Client) KeyboardEvents(ctx context.Context) (listener.Stream[KeyboardEvent], error) {
	return newEventStream(c, opKeyboardEvents, func(name, data string) (KeyboardEvent, bool) {
		if name != "configreloaded" {
			return mapKeyboardEvent(name, data)
		}
		multiple, err := bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, opKeyboardEvents, c.multipleLayouts)
		if err != nil {
			c.logger.Warn("failed to refresh layout configuration", "error", err)
			return KeyboardEvent{}, false
		}
		return KeyboardEvent{Kind: LayoutConfigurationChanged, MultipleLayouts: multiple}, true
	})
}

package hyprland

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
)

// fakeCompositor serves canned replies on the command socket and a fixed
// list of lines on the event socket.
type fakeCompositor struct {
	dir     string
	replies map[string]string
	events  []string

	mu       sync.Mutex
	received []string
}

func newFakeCompositor(t *testing.T, replies map[string]string, events ...string) *fakeCompositor {
	t.Helper()
	dir, err := os.MkdirTemp("", "hypr")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	f := &fakeCompositor{dir: dir, replies: replies, events: events}

	cmdLn, err := net.Listen("unix", filepath.Join(dir, commandSocket))
	if err != nil {
		t.Fatalf("listen command socket: %v", err)
	}
	evLn, err := net.Listen("unix", filepath.Join(dir, eventSocket))
	if err != nil {
		t.Fatalf("listen event socket: %v", err)
	}
	t.Cleanup(func() {
		cmdLn.Close()
		evLn.Close()
	})

	go f.serveCommands(cmdLn)
	go f.serveEvents(evLn)
	return f
}

func (f *fakeCompositor) serveCommands(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			buf := make([]byte, 1024)
			n, err := c.Read(buf)
			if err != nil {
				return
			}
			cmd := string(buf[:n])
			f.mu.Lock()
			f.received = append(f.received, cmd)
			f.mu.Unlock()

			reply, ok := f.replies[cmd]
			if !ok {
				reply = "unknown request"
			}
			io.WriteString(c, reply)
		}(conn)
	}
}

func (f *fakeCompositor) serveEvents(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		w := bufio.NewWriter(conn)
		for _, line := range f.events {
			w.WriteString(line + "\n")
		}
		w.Flush()
		conn.Close()
	}
}

func (f *fakeCompositor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func newTestClient(t *testing.T, f *fakeCompositor) *Client {
	t.Helper()
	cfg := bridge.DefaultConfig()
	cfg.RequestTimeout = time.Second
	cfg.RetryAttempts = 1
	c, err := NewClient(WithSocketDir(f.dir), WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestActiveWindow(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"j/activewindow": `{"address":"0x1","title":"vim main.go","class":"kitty"}`,
	})
	c := newTestClient(t, f)

	w, err := c.ActiveWindow(context.Background())
	if err != nil {
		t.Fatalf("ActiveWindow: %v", err)
	}
	if w == nil || w.Title != "vim main.go" || w.Class != "kitty" {
		t.Errorf("ActiveWindow = %+v", w)
	}
}

func TestActiveWindowNone(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{"j/activewindow": "{}"})
	c := newTestClient(t, f)

	w, err := c.ActiveWindow(context.Background())
	if err != nil {
		t.Fatalf("ActiveWindow: %v", err)
	}
	if w != nil {
		t.Errorf("ActiveWindow = %+v, want nil", w)
	}
}

func TestWorkspaceSnapshot(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"j/monitors": `[{"id":0,"name":"DP-1","specialWorkspace":{"id":-98,"name":"special:scratch"}},
			{"id":1,"name":"HDMI-A-1","specialWorkspace":{"id":0,"name":""}}]`,
		"j/workspaces": `[{"id":1,"name":"1","monitor":"DP-1","monitorID":0,"windows":2},
			{"id":-98,"name":"special:scratch","monitor":"DP-1","monitorID":0,"windows":1},
			{"id":4,"name":"4","monitor":"","monitorID":null,"windows":0}]`,
		"j/activeworkspace": `{"id":1,"name":"1"}`,
	})
	c := newTestClient(t, f)

	snap, err := c.WorkspaceSnapshot(context.Background())
	if err != nil {
		t.Fatalf("WorkspaceSnapshot: %v", err)
	}
	if len(snap.Monitors) != 2 || snap.Monitors[0].SpecialWorkspaceID != -98 {
		t.Errorf("Monitors = %+v", snap.Monitors)
	}
	if len(snap.Workspaces) != 3 {
		t.Fatalf("Workspaces = %+v", snap.Workspaces)
	}
	if snap.Workspaces[0].Windows != 2 || snap.Workspaces[0].MonitorName != "DP-1" {
		t.Errorf("Workspaces[0] = %+v", snap.Workspaces[0])
	}
	if snap.Workspaces[2].MonitorID != -1 {
		t.Errorf("unassigned workspace MonitorID = %d, want -1", snap.Workspaces[2].MonitorID)
	}
	if !snap.HasActive || snap.ActiveWorkspaceID != 1 {
		t.Errorf("active = %d (%v), want 1", snap.ActiveWorkspaceID, snap.HasActive)
	}
}

func TestChangeWorkspaceDispatch(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"dispatch workspace 3":         "ok",
		"dispatch workspace name:code": "ok",
	})
	c := newTestClient(t, f)

	if err := c.ChangeWorkspace(context.Background(), WorkspaceByID(3)); err != nil {
		t.Fatalf("ChangeWorkspace(3): %v", err)
	}
	if err := c.ChangeWorkspace(context.Background(), WorkspaceByName("code")); err != nil {
		t.Fatalf("ChangeWorkspace(code): %v", err)
	}
	got := f.commands()
	if len(got) != 2 || got[0] != "dispatch workspace 3" || got[1] != "dispatch workspace name:code" {
		t.Errorf("commands = %q", got)
	}
}

func TestDispatchRejected(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{"dispatch workspace 9": "Invalid workspace"})
	c := newTestClient(t, f)

	err := c.ChangeWorkspace(context.Background(), WorkspaceByID(9))
	var be *bridge.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("ChangeWorkspace = %v, want *bridge.BackendError", err)
	}
	if be.Operation != opChangeWorkspace || !errors.Is(err, errNotOK) {
		t.Errorf("error = %v", err)
	}
}

func TestFocusAndToggleSpecialWorkspace(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"dispatch focusmonitor DP-1":              "ok",
		"dispatch togglespecialworkspace scratch": "ok",
	})
	c := newTestClient(t, f)

	if err := c.FocusAndToggleSpecialWorkspace(context.Background(), MonitorByName("DP-1"), "special:scratch"); err != nil {
		t.Fatalf("FocusAndToggleSpecialWorkspace: %v", err)
	}
	got := f.commands()
	if len(got) != 2 || got[0] != "dispatch focusmonitor DP-1" {
		t.Errorf("commands = %q", got)
	}
}

func TestKeyboardState(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"j/getoption input:kb_layout": `{"option":"input:kb_layout","str":"us, ru ,","set":true}`,
		"j/devices": `{"keyboards":[{"name":"virtual","active_keymap":"English (US)","main":false},
			{"name":"at-keyboard","active_keymap":"Russian","main":true}]}`,
		"switchxkblayout all next": "ok",
	})
	c := newTestClient(t, f)

	st, err := c.KeyboardState(context.Background())
	if err != nil {
		t.Fatalf("KeyboardState: %v", err)
	}
	if st.ActiveLayout != "Russian" || !st.MultipleLayouts || st.Submap != "" {
		t.Errorf("KeyboardState = %+v", st)
	}
	if err := c.SwitchKeyboardLayout(context.Background()); err != nil {
		t.Fatalf("SwitchKeyboardLayout: %v", err)
	}
}

func TestQueryWithoutCompositor(t *testing.T) {
	dir := t.TempDir()
	cfg := bridge.Config{RequestTimeout: 200 * time.Millisecond, RetryAttempts: 2, RetryBackoff: time.Millisecond}
	c, err := NewClient(WithSocketDir(dir), WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.ActiveWindow(context.Background())
	var be *bridge.BackendError
	if !errors.As(err, &be) || be.Operation != opActiveWindow {
		t.Fatalf("ActiveWindow with no socket = %v, want backend error", err)
	}
}

func TestWindowEventStream(t *testing.T) {
	f := newFakeCompositor(t, nil,
		"activewindow>>kitty,vim",
		"activewindowv2>>55aa",
		"monitoradded>>DP-2",
		"garbage line",
		"closewindow>>55aa",
		"workspace>>2",
	)
	c := newTestClient(t, f)

	stream, err := c.WindowEvents(context.Background())
	if err != nil {
		t.Fatalf("WindowEvents: %v", err)
	}
	defer stream.Close()

	want := []WindowEvent{ActiveWindowChanged, WindowClosed, WorkspaceFocusChanged}
	for i, w := range want {
		ev, err := stream.Next(context.Background())
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if ev != w {
			t.Errorf("event #%d = %v, want %v", i, ev, w)
		}
	}
	if _, err := stream.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}
}

func TestKeyboardEventStream(t *testing.T) {
	f := newFakeCompositor(t, map[string]string{
		"j/getoption input:kb_layout": `{"str":"us"}`,
	},
		"activelayout>>at-keyboard,English (US)",
		"submap>>resize",
		"configreloaded>>",
		"submap>>",
	)
	c := newTestClient(t, f)

	stream, err := c.KeyboardEvents(context.Background())
	if err != nil {
		t.Fatalf("KeyboardEvents: %v", err)
	}
	defer stream.Close()

	want := []KeyboardEvent{
		{Kind: LayoutChanged, Layout: "English (US)"},
		{Kind: SubmapChanged, Submap: "resize"},
		{Kind: LayoutConfigurationChanged, MultipleLayouts: false},
		{Kind: SubmapChanged, Submap: ""},
	}
	for i, w := range want {
		ev, err := stream.Next(context.Background())
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if ev != w {
			t.Errorf("event #%d = %+v, want %+v", i, ev, w)
		}
	}
}

func TestEventStreamHonoursContext(t *testing.T) {
	dir, err := os.MkdirTemp("", "hypr")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ln, err := net.Listen("unix", filepath.Join(dir, eventSocket))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	c, err := NewClient(WithSocketDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	stream, err := c.WorkspaceEvents(context.Background())
	if err != nil {
		t.Fatalf("WorkspaceEvents: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := stream.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next = %v, want context.DeadlineExceeded", err)
	}
}

func TestSocketDir(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	if _, err := SocketDir(); !errors.Is(err, ErrNoInstance) || !errors.Is(err, bridge.ErrUnsupported) {
		t.Errorf("SocketDir without signature = %v", err)
	}

	runtime := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtime)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc")
	dir, err := SocketDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/hypr/abc" {
		t.Errorf("fallback dir = %q", dir)
	}

	want := filepath.Join(runtime, "hypr", "abc")
	if err := os.MkdirAll(want, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(want, commandSocket), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if dir, _ := SocketDir(); dir != want {
		t.Errorf("SocketDir = %q, want %q", dir, want)
	}
}

func TestSelectorsAndEventNames(t *testing.T) {
	tests := map[string]string{
		MonitorByID(3).String():          "monitor-id:3",
		MonitorByName("DP-1").String():   "monitor-name:DP-1",
		WorkspaceByID(2).String():        "workspace-id:2",
		WorkspaceByName("code").String(): "workspace-name:code",
		SpecialChanged.String():          "special_changed",
		WindowClosed.String():            "window_closed",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if n := countLayouts(" us ,, de"); n != 2 {
		t.Errorf("countLayouts = %d, want 2", n)
	}
	if _, _, ok := splitEvent(">>data"); ok {
		t.Error("splitEvent accepted empty name")
	}
	if !strings.HasPrefix(ErrNoInstance.Error(), "hyprland") {
		t.Errorf("ErrNoInstance = %q", ErrNoInstance)
	}
}

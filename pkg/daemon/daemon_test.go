package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/hyprland"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/modules"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// shortDir keeps socket paths under the sun_path limit.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func startServer(t *testing.T, h Handler) *Client {
	t.Helper()
	sock := filepath.Join(shortDir(t), "ctl.sock")
	srv := NewServer(sock, h, quiet)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Stop)
	return NewClient(sock)
}

func TestServerRoundTrip(t *testing.T) {
	var got []string
	client := startServer(t, HandlerFunc(func(cmd string, args []string) (string, error) {
		got = append([]string{cmd}, args...)
		if cmd == "FAIL" {
			return "", errors.New("boom")
		}
		return "{\n  \"ok\": true\n}", nil
	}))

	resp, err := client.Send("echo a b")
	if err != nil {
		t.Fatal(err)
	}
	if resp != `{"ok":true}` {
		t.Errorf("response = %q, want compacted JSON", resp)
	}
	if strings.Join(got, " ") != "ECHO a b" {
		t.Errorf("handler got %v", got)
	}

	resp, err = client.Send("fail")
	if err != nil {
		t.Fatal(err)
	}
	if resp != `{"error":"boom"}` {
		t.Errorf("error response = %q", resp)
	}
}

func TestServerStopRemovesSocket(t *testing.T) {
	sock := filepath.Join(shortDir(t), "ctl.sock")
	srv := NewServer(sock, HandlerFunc(func(string, []string) (string, error) { return "{}", nil }), quiet)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(sock)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}
	srv.Stop()
	srv.Stop()
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Errorf("socket still present: %v", err)
	}
	if _, err := NewClient(sock).Send("PING"); err == nil {
		t.Error("Send after Stop succeeded")
	}
}

// main stops the server before shutting down the task runtime; that only
// holds if Stop returns after every in-flight command has finished.
func TestServerStopWaitsForInFlightCommand(t *testing.T) {
	sock := filepath.Join(shortDir(t), "ctl.sock")
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	srv := NewServer(sock, HandlerFunc(func(string, []string) (string, error) {
		close(entered)
		<-release
		finished.Store(true)
		return "{}", nil
	}), quiet)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}

	go func() { _, _ = NewClient(sock).Send("WORKSPACE 2") }()
	<-entered

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a command was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if !finished.Load() {
		t.Error("command had not finished when Stop returned")
	}
}

func newController(t *testing.T, capacity int) (*Controller, *eventbus.Bus, *atomic.Int32) {
	t.Helper()
	bus, err := eventbus.New(capacity)
	if err != nil {
		t.Fatal(err)
	}
	rt := tasks.New(context.Background(), quiet)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Shutdown(ctx)
	})
	reg := modules.NewRegistry()
	if err := reg.Add(modules.NewClock("15:04", time.Hour, quiet)); err != nil {
		t.Fatal(err)
	}
	var quits atomic.Int32
	return &Controller{
		Context:  modctx.New(bus.Sender(), rt),
		Registry: reg,
		Quit:     func() { quits.Add(1) },
	}, bus, &quits
}

func TestControllerBusCommands(t *testing.T) {
	c, bus, _ := newController(t, 2)
	client := startServer(t, c)

	for _, cmd := range []string{"redraw", "REDRAW", "popup"} {
		resp, err := client.Send(cmd)
		if err != nil {
			t.Fatal(err)
		}
		if resp != `{"ok":true}` {
			t.Errorf("%s: %q", cmd, resp)
		}
	}
	events, err := bus.Receiver().Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Kind() != eventbus.KindRedraw || events[1].Kind() != eventbus.KindPopupToggle {
		t.Errorf("bus events = %v, want [redraw popup]", events)
	}

	// Fill the queue: a module event and a popup toggle occupy both slots.
	_ = bus.Sender().Publish(eventbus.Module(eventbus.ModuleEvent{ID: eventbus.Clock}))
	_ = bus.Sender().Publish(eventbus.PopupToggle())
	resp, _ := client.Send("REDRAW")
	if !strings.Contains(resp, "error") {
		t.Errorf("full bus response = %q, want error", resp)
	}
}

func TestControllerStatusAndQuit(t *testing.T) {
	c, _, quits := newController(t, 8)

	out, err := c.HandleCommand("STATUS", nil)
	if err != nil {
		t.Fatal(err)
	}
	var all []modules.Status
	if err := json.Unmarshal([]byte(out), &all); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(all) != 1 || all[0].ID != "clock" {
		t.Errorf("status = %+v", all)
	}

	if _, err := c.HandleCommand("STATUS", []string{"nope"}); err == nil {
		t.Error("STATUS for unknown module should fail")
	}
	if _, err := c.HandleCommand("WORKSPACE", []string{"2"}); err == nil {
		t.Error("WORKSPACE without module should fail")
	}
	if _, err := c.HandleCommand("BOGUS", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("BOGUS err = %v", err)
	}

	if _, err := c.HandleCommand("QUIT", nil); err != nil {
		t.Fatal(err)
	}
	if quits.Load() != 1 {
		t.Errorf("quit called %d times", quits.Load())
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// dispatchAll plays the UI loop: drain the bus and hand module events to
// their owners.
func dispatchAll(t *testing.T, bus *eventbus.Bus, reg *modules.Registry) {
	t.Helper()
	events, err := bus.Receiver().Drain()
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		if me, ok := ev.ModuleEvent(); ok {
			reg.Dispatch(me)
		}
	}
}

func TestControllerWorkspaceRunsOnDispatch(t *testing.T) {
	c, bus, _ := newController(t, 64)
	snap := hyprland.WorkspaceSnapshot{
		Workspaces: []hyprland.WorkspaceInfo{
			{ID: 1, Name: "1", MonitorName: "DP-1", Windows: 1},
			{ID: 2, Name: "2", MonitorName: "DP-1"},
		},
		ActiveWorkspaceID: 1,
		HasActive:         true,
	}
	port := hyprland.NewMockPort(hyprland.WithSnapshot(snap))
	ws := modules.NewWorkspaces(port, modules.WorkspacesOptions{}, quiet)
	if err := c.Registry.Add(ws); err != nil {
		t.Fatal(err)
	}
	if err := ws.Register(c.Context); err != nil {
		t.Fatal(err)
	}

	// Socket commands race the UI goroutine's Handle calls; the command
	// side must not read the strip.
	const commands = 10
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			ws.Handle(modules.WorkspacesChanged{Snapshot: snap})
		}
	}()
	go func() {
		defer wg.Done()
		for range commands {
			if _, err := c.HandleCommand("WORKSPACE", []string{"2"}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()

	if got := len(port.ChangedWorkspaces()); got != 0 {
		t.Fatalf("changed before dispatch = %d, want 0", got)
	}
	dispatchAll(t, bus, c.Registry)
	eventually(t, func() bool { return len(port.ChangedWorkspaces()) == commands })
	if id, ok := port.ChangedWorkspaces()[0].ID(); !ok || id != 2 {
		t.Errorf("changed = %v", port.ChangedWorkspaces()[0])
	}

	if _, err := c.HandleCommand("WORKSPACE", []string{"0"}); err == nil {
		t.Error("WORKSPACE 0 should fail")
	}
	if _, err := c.HandleCommand("WORKSPACE", []string{"two"}); err == nil {
		t.Error("non-numeric WORKSPACE should fail")
	}
}

func TestControllerLayoutRunsOnDispatch(t *testing.T) {
	c, bus, _ := newController(t, 8)
	if _, err := c.HandleCommand("LAYOUT", nil); err == nil {
		t.Error("LAYOUT without module should fail")
	}

	port := hyprland.NewMockPort()
	kb := modules.NewKeyboardLayout(port, nil, quiet)
	if err := c.Registry.Add(kb); err != nil {
		t.Fatal(err)
	}
	if err := kb.Register(c.Context); err != nil {
		t.Fatal(err)
	}

	resp, err := c.HandleCommand("LAYOUT", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != `{"ok":true}` {
		t.Errorf("LAYOUT = %q", resp)
	}
	if port.LayoutSwitches() != 0 {
		t.Error("layout switched before dispatch")
	}
	dispatchAll(t, bus, c.Registry)
	eventually(t, func() bool { return port.LayoutSwitches() == 1 })
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "hydebar.pid")

	lock, err := AcquirePID(path)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPID(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	// flock is per open file, so a second acquire conflicts even in-process.
	if _, err := AcquirePID(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second acquire: err = %v, want ErrAlreadyRunning", err)
	} else if !strings.Contains(err.Error(), strconv.Itoa(os.Getpid())) {
		t.Errorf("error %q does not name the holder", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("pid file still present: %v", err)
	}

	again, err := AcquirePID(path)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestPIDFileLeftoverIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydebar.pid")
	if err := os.WriteFile(path, []byte("garbage that is longer than a pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	lock, err := AcquirePID(path)
	if err != nil {
		t.Fatalf("unlocked leftover: %v", err)
	}
	defer lock.Release()

	if lock.Path() != path {
		t.Errorf("Path = %q", lock.Path())
	}
	pid, err := ReadPID(path)
	if err != nil || pid != os.Getpid() {
		t.Errorf("ReadPID = %d, %v", pid, err)
	}
}

package hyprland

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
)

// MockPort implements Port for tests. Queries return configurable values,
// commands are recorded, and event streams read from channels that tests
// feed through the Emit* methods.
type MockPort struct {
	mu       sync.RWMutex
	window   *WindowInfo
	snapshot WorkspaceSnapshot
	keyboard KeyboardState
	err      error
	openErr  error

	windowCh    chan listener.Item[WindowEvent]
	workspaceCh chan listener.Item[WorkspaceEvent]
	keyboardCh  chan listener.Item[KeyboardEvent]

	queries  atomic.Int64
	opens    atomic.Int64
	switches atomic.Int64

	changed []WorkspaceSelector
	toggled []string
}

// MockPortOption configures a MockPort.
type MockPortOption func(*MockPort)

// WithActiveWindow sets the window returned by ActiveWindow.
func WithActiveWindow(title, class string) MockPortOption {
	return func(m *MockPort) { m.window = &WindowInfo{Title: title, Class: class} }
}

// WithSnapshot sets the snapshot returned by WorkspaceSnapshot.
func WithSnapshot(s WorkspaceSnapshot) MockPortOption {
	return func(m *MockPort) { m.snapshot = s }
}

// WithKeyboard sets the state returned by KeyboardState.
func WithKeyboard(s KeyboardState) MockPortOption {
	return func(m *MockPort) { m.keyboard = s }
}

// WithQueryError makes every query and command fail with err.
func WithQueryError(err error) MockPortOption {
	return func(m *MockPort) { m.err = err }
}

// WithOpenError makes every event stream open fail with err.
func WithOpenError(err error) MockPortOption {
	return func(m *MockPort) { m.openErr = err }
}

// NewMockPort creates a mock with no focused window and a "us" layout.
func NewMockPort(opts ...MockPortOption) *MockPort {
	m := &MockPort{
		keyboard:    KeyboardState{ActiveLayout: "us"},
		windowCh:    make(chan listener.Item[WindowEvent], 16),
		workspaceCh: make(chan listener.Item[WorkspaceEvent], 16),
		keyboardCh:  make(chan listener.Item[KeyboardEvent], 16),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetActiveWindow changes the focused window; nil means none.
func (m *MockPort) SetActiveWindow(w *WindowInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = w
}

// SetSnapshot replaces the workspace snapshot.
func (m *MockPort) SetSnapshot(s WorkspaceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
}

// SetKeyboard replaces the keyboard state.
func (m *MockPort) SetKeyboard(s KeyboardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyboard = s
}

// EmitWindow delivers a window event to the open stream.
func (m *MockPort) EmitWindow(ev WindowEvent) {
	m.windowCh <- listener.Item[WindowEvent]{Event: ev}
}

// EmitWorkspace delivers a workspace event to the open stream.
func (m *MockPort) EmitWorkspace(ev WorkspaceEvent) {
	m.workspaceCh <- listener.Item[WorkspaceEvent]{Event: ev}
}

// EmitKeyboard delivers a keyboard event to the open stream.
func (m *MockPort) EmitKeyboard(ev KeyboardEvent) {
	m.keyboardCh <- listener.Item[KeyboardEvent]{Event: ev}
}

// FailWindowStream ends the open window stream with err.
func (m *MockPort) FailWindowStream(err error) {
	m.windowCh <- listener.Item[WindowEvent]{Err: err}
}

// Queries returns the number of blocking queries served.
func (m *MockPort) Queries() int64 { return m.queries.Load() }

// Opens returns the number of event streams opened.
func (m *MockPort) Opens() int64 { return m.opens.Load() }

// LayoutSwitches returns the number of SwitchKeyboardLayout calls.
func (m *MockPort) LayoutSwitches() int64 { return m.switches.Load() }

// ChangedWorkspaces returns the selectors passed to ChangeWorkspace.
func (m *MockPort) ChangedWorkspaces() []WorkspaceSelector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WorkspaceSelector(nil), m.changed...)
}

// ToggledSpecials returns the names passed to FocusAndToggleSpecialWorkspace.
func (m *MockPort) ToggledSpecials() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.toggled...)
}

func openMock[E any](m *MockPort, ch chan listener.Item[E]) (listener.Stream[E], error) {
	m.opens.Add(1)
	m.mu.RLock()
	err := m.openErr
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return listener.NewChanStream[E](ch, nil), nil
}

// WindowEvents implements Port.
func (m *MockPort) WindowEvents(context.Context) (listener.Stream[WindowEvent], error) {
	return openMock(m, m.windowCh)
}

// WorkspaceEvents implements Port.
func (m *MockPort) WorkspaceEvents(context.Context) (listener.Stream[WorkspaceEvent], error) {
	return openMock(m, m.workspaceCh)
}

// KeyboardEvents implements Port.
func (m *MockPort) KeyboardEvents(context.Context) (listener.Stream[KeyboardEvent], error) {
	return openMock(m, m.keyboardCh)
}

// ActiveWindow implements Port.
func (m *MockPort) ActiveWindow(context.Context) (*WindowInfo, error) {
	m.queries.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.window == nil {
		return nil, nil
	}
	w := *m.window
	return &w, nil
}

// WorkspaceSnapshot implements Port.
func (m *MockPort) WorkspaceSnapshot(context.Context) (WorkspaceSnapshot, error) {
	m.queries.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return WorkspaceSnapshot{}, m.err
	}
	return m.snapshot, nil
}

// ChangeWorkspace implements Port.
func (m *MockPort) ChangeWorkspace(_ context.Context, ws WorkspaceSelector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.changed = append(m.changed, ws)
	return nil
}

// FocusAndToggleSpecialWorkspace implements Port.
func (m *MockPort) FocusAndToggleSpecialWorkspace(_ context.Context, _ MonitorSelector, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.toggled = append(m.toggled, name)
	return nil
}

// KeyboardState implements Port.
func (m *MockPort) KeyboardState(context.Context) (KeyboardState, error) {
	m.queries.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return KeyboardState{}, m.err
	}
	return m.keyboard, nil
}

// SwitchKeyboardLayout implements Port.
func (m *MockPort) SwitchKeyboardLayout(context.Context) error {
	m.switches.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

var _ Port = (*MockPort)(nil)

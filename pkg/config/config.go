package config

import (
	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
)

// Config is the root of config.toml.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Bus      BusConfig      `toml:"bus"`
	Hyprland HyprlandConfig `toml:"hyprland"`
	Modules  ModulesConfig  `toml:"modules"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// LogFile receives a copy of every log line. Empty disables it.
	LogFile string `toml:"log_file"`
	// Theme names a built-in palette (default, gruvbox, nord, catppuccin,
	// dracula, tokyo-night).
	Theme string `toml:"theme"`
	// RuntimeDir holds the pid file and the control socket.
	RuntimeDir string `toml:"runtime_dir"`
}

// BusConfig sizes the event bus and sets how often the UI drains it.
type BusConfig struct {
	Capacity int      `toml:"capacity"`
	Tick     Duration `toml:"tick"`
}

// HyprlandConfig controls compositor request timeouts and retries.
type HyprlandConfig struct {
	RequestTimeout  Duration `toml:"request_timeout"`
	ListenerTimeout Duration `toml:"listener_timeout"`
	RetryAttempts   int      `toml:"retry_attempts"`
	RetryBackoff    Duration `toml:"retry_backoff"`
}

// Bridge converts the section into a bridge.Config.
func (h HyprlandConfig) Bridge() bridge.Config {
	return bridge.Config{
		RequestTimeout:  h.RequestTimeout.Duration,
		ListenerTimeout: h.ListenerTimeout.Duration,
		RetryAttempts:   h.RetryAttempts,
		RetryBackoff:    h.RetryBackoff.Duration,
	}.Normalized()
}

// ModulesConfig has one section per bar module.
type ModulesConfig struct {
	Clock          ClockConfig          `toml:"clock"`
	WindowTitle    WindowTitleConfig    `toml:"window_title"`
	Workspaces     WorkspacesConfig     `toml:"workspaces"`
	KeyboardLayout KeyboardLayoutConfig `toml:"keyboard_layout"`
	KeyboardSubmap KeyboardSubmapConfig `toml:"keyboard_submap"`
	SystemInfo     SystemInfoConfig     `toml:"system_info"`
	Network        NetworkConfig        `toml:"network"`
	Kube           KubeConfig           `toml:"kube"`
	Privacy        PrivacyConfig        `toml:"privacy"`
	Custom         []CustomModuleConfig `toml:"custom"`
}

// ClockConfig configures the clock. Format is a Go time layout.
type ClockConfig struct {
	Enabled  bool     `toml:"enabled"`
	Format   string   `toml:"format"`
	Interval Duration `toml:"interval"`
}

// Window title display modes.
const (
	TitleModeTitle = "title"
	TitleModeClass = "class"
)

// WindowTitleConfig configures the focused-window label.
type WindowTitleConfig struct {
	Enabled bool `toml:"enabled"`
	// Mode is "title" or "class".
	Mode          string `toml:"mode"`
	TruncateAfter int    `toml:"truncate_title_after_length"`
}

// Workspace visibility modes.
const (
	VisibilityAll             = "all"
	VisibilityMonitorSpecific = "monitor_specific"
)

// WorkspacesConfig configures the workspace strip.
type WorkspacesConfig struct {
	Enabled        bool   `toml:"enabled"`
	VisibilityMode string `toml:"visibility_mode"`
	// Monitor names the output this bar sits on for monitor_specific.
	Monitor string `toml:"monitor"`
	// EnableFilling shows empty placeholders for every ID up to
	// MaxWorkspaces (or the highest existing ID when zero).
	EnableFilling bool `toml:"enable_workspace_filling"`
	MaxWorkspaces int  `toml:"max_workspaces"`
}

// KeyboardLayoutConfig maps compositor layout names to short labels.
type KeyboardLayoutConfig struct {
	Enabled bool              `toml:"enabled"`
	Labels  map[string]string `toml:"labels"`
}

// KeyboardSubmapConfig toggles the submap indicator.
type KeyboardSubmapConfig struct {
	Enabled bool `toml:"enabled"`
}

// Threshold is a warn/alert percentage pair.
type Threshold struct {
	Warn  int `toml:"warn_threshold"`
	Alert int `toml:"alert_threshold"`
}

// SystemInfoConfig configures the sampled system metrics.
type SystemInfoConfig struct {
	Enabled     bool      `toml:"enabled"`
	Interval    Duration  `toml:"interval"`
	CPU         Threshold `toml:"cpu"`
	Memory      Threshold `toml:"memory"`
	Temperature Threshold `toml:"temperature"`
	Disk        Threshold `toml:"disk"`
	// DiskPath is the mount point sampled for disk usage.
	DiskPath string `toml:"disk_path"`
}

// NetworkConfig configures the tailnet status module.
type NetworkConfig struct {
	Enabled bool `toml:"enabled"`
	// Socket overrides the tailscaled socket path.
	Socket     string   `toml:"socket"`
	RetryDelay Duration `toml:"retry_delay"`
}

// KubeConfig configures the cluster pod watcher.
type KubeConfig struct {
	Enabled    bool     `toml:"enabled"`
	Kubeconfig string   `toml:"kubeconfig"`
	Context    string   `toml:"context"`
	Namespace  string   `toml:"namespace"`
	RetryDelay Duration `toml:"retry_delay"`
}

// PrivacyConfig configures the webcam usage indicator.
type PrivacyConfig struct {
	Enabled bool   `toml:"enabled"`
	Device  string `toml:"device"`
}

// CustomModuleConfig defines a named module that shows the output of a
// shell command.
type CustomModuleConfig struct {
	Name     string   `toml:"name"`
	Command  string   `toml:"command"`
	Icon     string   `toml:"icon"`
	Interval Duration `toml:"interval"`
}

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "hydebar"

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/hydebar/config.toml
//  2. ~/.config/hydebar/config.toml
//
// If no file exists, returns DefaultConfig() with environment overrides.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file path. A missing
// file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes TOML on top of the defaults, applies environment
// overrides and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		General: GeneralConfig{
			LogLevel:   "warn",
			Theme:      "default",
			LogFile:    filepath.Join(xdgStateHome(home), appName, "hydebar.log"),
			RuntimeDir: runtimeDir(),
		},
		Bus: BusConfig{
			Capacity: 256,
			Tick:     Duration{50 * time.Millisecond},
		},
		Hyprland: HyprlandConfig{
			RequestTimeout:  Duration{2 * time.Second},
			ListenerTimeout: Duration{60 * time.Second},
			RetryAttempts:   3,
			RetryBackoff:    Duration{250 * time.Millisecond},
		},
		Modules: ModulesConfig{
			Clock: ClockConfig{
				Enabled:  true,
				Format:   "Mon 02 Jan 15:04",
				Interval: Duration{time.Second},
			},
			WindowTitle: WindowTitleConfig{
				Enabled:       true,
				Mode:          TitleModeTitle,
				TruncateAfter: 150,
			},
			Workspaces: WorkspacesConfig{
				Enabled:        true,
				VisibilityMode: VisibilityAll,
			},
			KeyboardLayout: KeyboardLayoutConfig{
				Enabled: true,
				Labels:  map[string]string{},
			},
			KeyboardSubmap: KeyboardSubmapConfig{Enabled: true},
			SystemInfo: SystemInfoConfig{
				Enabled:     true,
				Interval:    Duration{5 * time.Second},
				CPU:         Threshold{Warn: 60, Alert: 80},
				Memory:      Threshold{Warn: 70, Alert: 85},
				Temperature: Threshold{Warn: 60, Alert: 80},
				Disk:        Threshold{Warn: 80, Alert: 90},
				DiskPath:    "/",
			},
			Network: NetworkConfig{
				Enabled:    false,
				RetryDelay: Duration{5 * time.Second},
			},
			Kube: KubeConfig{
				Enabled:    false,
				Namespace:  "default",
				RetryDelay: Duration{10 * time.Second},
			},
			Privacy: PrivacyConfig{
				Enabled: true,
				Device:  "/dev/video0",
			},
		},
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HYDEBAR_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("HYDEBAR_THEME"); v != "" {
		cfg.General.Theme = v
	}
	if v := os.Getenv("HYDEBAR_BUS_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.Capacity = n
		}
	}
	if v := os.Getenv("HYDEBAR_RUNTIME_DIR"); v != "" {
		cfg.General.RuntimeDir = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" && cfg.Modules.Kube.Kubeconfig == "" {
		cfg.Modules.Kube.Kubeconfig = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, appName, "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, appName, "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgStateHome returns XDG_STATE_HOME or ~/.local/state as fallback.
func xdgStateHome(home string) string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "state")
}

// runtimeDir returns $XDG_RUNTIME_DIR/hydebar, or a per-user directory
// under the system temp dir when the session has no runtime dir.
func runtimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d", appName, os.Getuid()))
}

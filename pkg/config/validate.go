package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RAprogramm/hydebar-sub001/pkg/theme"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.General.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}

	if !theme.Exists(c.General.Theme) {
		errs = append(errs, fmt.Errorf("general.theme: unknown theme %q (available: %s)", c.General.Theme, strings.Join(theme.Names(), ", ")))
	}

	if c.Bus.Capacity < 1 {
		errs = append(errs, fmt.Errorf("bus.capacity: must be at least 1, got %d", c.Bus.Capacity))
	}
	if c.Bus.Tick.Duration <= 0 {
		errs = append(errs, errors.New("bus.tick: must be positive"))
	}

	if c.Hyprland.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("hyprland.retry_attempts: must be at least 1, got %d", c.Hyprland.RetryAttempts))
	}
	if c.Hyprland.RequestTimeout.Duration <= 0 {
		errs = append(errs, errors.New("hyprland.request_timeout: must be positive"))
	}

	m := c.Modules
	switch m.WindowTitle.Mode {
	case TitleModeTitle, TitleModeClass:
	default:
		errs = append(errs, fmt.Errorf("modules.window_title.mode: want %q or %q, got %q", TitleModeTitle, TitleModeClass, m.WindowTitle.Mode))
	}
	if m.WindowTitle.TruncateAfter < 0 {
		errs = append(errs, errors.New("modules.window_title.truncate_title_after_length: must not be negative"))
	}
	switch m.Workspaces.VisibilityMode {
	case VisibilityAll, VisibilityMonitorSpecific:
	default:
		errs = append(errs, fmt.Errorf("modules.workspaces.visibility_mode: unknown mode %q", m.Workspaces.VisibilityMode))
	}
	if m.Workspaces.MaxWorkspaces < 0 {
		errs = append(errs, errors.New("modules.workspaces.max_workspaces: must not be negative"))
	}

	for name, t := range map[string]Threshold{
		"cpu": m.SystemInfo.CPU, "memory": m.SystemInfo.Memory,
		"temperature": m.SystemInfo.Temperature, "disk": m.SystemInfo.Disk,
	} {
		if t.Warn > t.Alert {
			errs = append(errs, fmt.Errorf("modules.system_info.%s: warn_threshold %d above alert_threshold %d", name, t.Warn, t.Alert))
		}
	}

	seen := make(map[string]bool, len(m.Custom))
	for i, cm := range m.Custom {
		switch {
		case cm.Name == "":
			errs = append(errs, fmt.Errorf("modules.custom[%d]: name is required", i))
		case seen[cm.Name]:
			errs = append(errs, fmt.Errorf("modules.custom[%d]: duplicate name %q", i, cm.Name))
		}
		seen[cm.Name] = true
		if strings.TrimSpace(cm.Command) == "" {
			errs = append(errs, fmt.Errorf("modules.custom[%d]: command is required", i))
		}
	}

	return errors.Join(errs...)
}

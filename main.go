// hydebar is a status bar for the Hyprland compositor rendered in a
// terminal.
//
// Modules (clock, window title, workspaces, keyboard layout, system info,
// tailnet, cluster pods, webcam privacy and custom commands) publish
// events on a bounded bus from background tasks; the UI loop drains the
// bus once per tick and redraws.
//
// Usage:
//
//	hydebar [flags]
//
// Flags:
//
//	-config string  Path to configuration file (default: $XDG_CONFIG_HOME/hydebar/config.toml)
//	-msg string     Send a control command (redraw|popup|status|quit|...) to the running bar
//	-verbose        Enable verbose logging
//	-version        Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/RAprogramm/hydebar-sub001/pkg/app"
	"github.com/RAprogramm/hydebar-sub001/pkg/config"
	"github.com/RAprogramm/hydebar-sub001/pkg/daemon"
	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/hyprland"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/modules"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/kube"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/privacy"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/sysinfo"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/tailnet"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
	"github.com/RAprogramm/hydebar-sub001/pkg/theme"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// shutdownTimeout bounds how long background tasks get to exit.
const shutdownTimeout = 3 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		msg         = flag.String("msg", "", "Send a control command to the running bar and print the reply")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("hydebar %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	socketPath := filepath.Join(cfg.General.RuntimeDir, "hydebar.sock")
	if *msg != "" {
		resp, err := daemon.NewClient(socketPath).Send(strings.Join(append([]string{*msg}, flag.Args()...), " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		if strings.HasPrefix(resp, `{"error"`) {
			os.Exit(1)
		}
		os.Exit(0)
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	logger, closeLog, err := newLogger(cfg.General, *verbose, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, socketPath, interactive, logger); err != nil {
		logger.Error("hydebar exited with error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger writes to the configured log file and, when the bar does not
// own the terminal, to stderr as well.
func newLogger(cfg config.GeneralConfig, verbose, interactive bool) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	var writers []io.Writer
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}
	if !interactive || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	}))
	return logger, closeFn, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func run(cfg *config.Config, socketPath string, interactive bool, logger *slog.Logger) error {
	pidPath := filepath.Join(cfg.General.RuntimeDir, "hydebar.pid")
	lock, err := daemon.AcquirePID(pidPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release pid file", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := eventbus.New(cfg.Bus.Capacity)
	if err != nil {
		return err
	}
	rt := tasks.New(ctx, logger)
	mctx := modctx.New(bus.Sender(), rt)

	b := buildModules(cfg, logger)
	defer b.registry.CloseAll()

	if err := b.registry.RegisterAll(mctx); err != nil {
		// Failed modules stay in the registry with their error recorded;
		// the rest of the bar still runs.
		logger.Error("some modules failed to register", "error", err)
	}

	th := theme.Get(cfg.General.Theme)
	model := app.New(app.Options{
		Receiver: bus.Receiver(),
		Context:  mctx,
		Registry: b.registry,
		Tick:     cfg.Bus.Tick.Duration,
		Controls: b.controls,
		Theme:    &th,
		Logger:   logger,
	})

	var opts []tea.ProgramOption
	if interactive {
		opts = append(opts, tea.WithAltScreen())
	} else {
		opts = append(opts, tea.WithInput(nil))
	}
	program := tea.NewProgram(model, opts...)

	server := daemon.NewServer(socketPath, &daemon.Controller{
		Context:  mctx,
		Registry: b.registry,
		Quit:     func() { program.Send(app.QuitEvent{}) },
	}, logger)
	if err := server.Start(); err != nil {
		logger.Warn("control socket unavailable", "error", err)
		server = nil
	}

	go func() {
		<-ctx.Done()
		logger.Info("received shutdown signal")
		program.Send(app.QuitEvent{})
	}()

	logger.Info("starting hydebar", "version", version, "modules", b.registry.List())
	_, runErr := program.Run()
	stop()
	// No control command may spawn work once the runtime starts waiting.
	if server != nil {
		server.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background tasks did not stop in time", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", runErr)
	}
	return nil
}

type built struct {
	registry *modules.Registry
	controls app.Controls
}

// buildModules creates the enabled modules in bar order. Modules whose
// collaborator cannot be created are skipped with a warning.
func buildModules(cfg *config.Config, logger *slog.Logger) built {
	mc := cfg.Modules
	b := built{registry: modules.NewRegistry()}
	add := func(m modules.Module) {
		if err := b.registry.Add(m); err != nil {
			logger.Error("skipping module", "module", m.ID(), "error", err)
		}
	}

	var port hyprland.Port
	if mc.WindowTitle.Enabled || mc.Workspaces.Enabled || mc.KeyboardLayout.Enabled || mc.KeyboardSubmap.Enabled {
		client, err := hyprland.NewClient(hyprland.WithConfig(cfg.Hyprland.Bridge()), hyprland.WithLogger(logger))
		if err != nil {
			logger.Warn("compositor modules disabled", "error", err)
		} else {
			port = client
		}
	}

	if port != nil && mc.Workspaces.Enabled {
		ws := modules.NewWorkspaces(port, modules.WorkspacesOptions{
			VisibilityMode: mc.Workspaces.VisibilityMode,
			Monitor:        mc.Workspaces.Monitor,
			EnableFilling:  mc.Workspaces.EnableFilling,
			MaxWorkspaces:  mc.Workspaces.MaxWorkspaces,
		}, logger)
		b.controls.Workspaces = ws
		add(ws)
	}
	if port != nil && mc.WindowTitle.Enabled {
		add(modules.NewWindowTitle(port, mc.WindowTitle.Mode, mc.WindowTitle.TruncateAfter, logger))
	}

	for _, c := range mc.Custom {
		add(modules.NewCustom(c.Name, c.Command, c.Icon, c.Interval.Duration, cfg.Hyprland.Bridge(), logger))
	}

	if mc.SystemInfo.Enabled {
		svc := sysinfo.New(sysinfo.Config{
			Interval: mc.SystemInfo.Interval.Duration,
			DiskPath: mc.SystemInfo.DiskPath,
		}, nil, logger)
		add(modules.NewServiceModule[*sysinfo.State, sysinfo.Snapshot](eventbus.SystemInfo, svc, modules.SystemInfoView(modules.Thresholds{
			CPUWarn: mc.SystemInfo.CPU.Warn, CPUAlert: mc.SystemInfo.CPU.Alert,
			MemoryWarn: mc.SystemInfo.Memory.Warn, MemoryAlert: mc.SystemInfo.Memory.Alert,
			TempWarn: mc.SystemInfo.Temperature.Warn, TempAlert: mc.SystemInfo.Temperature.Alert,
			DiskWarn: mc.SystemInfo.Disk.Warn, DiskAlert: mc.SystemInfo.Disk.Alert,
		}), logger))
	}

	if mc.Network.Enabled {
		svc := tailnet.New(tailnet.NewLocalClient(mc.Network.Socket), mc.Network.RetryDelay.Duration, logger)
		net := modules.NewServiceModule[*tailnet.Status, tailnet.Change](eventbus.Network, svc, modules.NetworkView(), logger)
		b.controls.ToggleNetwork = func() bool {
			cmd := tailnet.Connect
			if st, ok := net.State(); ok && st.Running() {
				cmd = tailnet.Disconnect
			}
			return modules.SendCommand[*tailnet.Status, tailnet.Change, tailnet.Command](net, svc, cmd)
		}
		add(net)
	}

	if mc.Kube.Enabled {
		client, err := kube.NewClient(mc.Kube.Kubeconfig, mc.Kube.Context)
		if err != nil {
			logger.Warn("kube module disabled", "error", err)
		} else {
			svc := kube.New(client, mc.Kube.Namespace, mc.Kube.RetryDelay.Duration, logger)
			add(modules.NewServiceModule[*kube.Pods, kube.PodChange](eventbus.Kube, svc, modules.KubeView(), logger))
		}
	}

	if mc.Privacy.Enabled {
		svc := privacy.New(mc.Privacy.Device, logger)
		add(modules.NewServiceModule[*privacy.Usage, privacy.Change](eventbus.Privacy, svc, modules.PrivacyView(), logger))
	}

	if port != nil && mc.KeyboardSubmap.Enabled {
		add(modules.NewKeyboardSubmap(port, logger))
	}
	if port != nil && mc.KeyboardLayout.Enabled {
		kb := modules.NewKeyboardLayout(port, mc.KeyboardLayout.Labels, logger)
		b.controls.Keyboard = kb
		add(kb)
	}
	if mc.Clock.Enabled {
		add(modules.NewClock(mc.Clock.Format, mc.Clock.Interval.Duration, logger))
	}

	return b
}

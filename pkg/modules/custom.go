package modules

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/bridge"
	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
)

// DefaultCustomInterval is the polling interval for custom modules.
const DefaultCustomInterval = 10 * time.Second

// CustomOutput is the first line printed by a custom command.
type CustomOutput struct {
	Text string
}

// Custom shows the output of a shell command, re-run on an interval.
type Custom struct {
	name     string
	command  string
	icon     string
	interval time.Duration
	cfg      bridge.Config
	logger   *slog.Logger

	text   string
	failed bool
	slot   taskSlot
}

// NewCustom creates a custom module. Commands run under "sh -c" through
// the blocking-call bridge with cfg's timeout and retries.
func NewCustom(name, command, icon string, interval time.Duration, cfg bridge.Config, logger *slog.Logger) *Custom {
	if interval <= 0 {
		interval = DefaultCustomInterval
	}
	return &Custom{
		name:     name,
		command:  command,
		icon:     icon,
		interval: interval,
		cfg:      cfg.Normalized(),
		logger:   orDefault(logger).With("module", "custom", "name", name),
	}
}

// ID implements Module.
func (c *Custom) ID() string {
	return eventbus.ModuleEvent{ID: eventbus.Custom, Name: c.name}.Key()
}

// Register implements Module.
func (c *Custom) Register(ctx *modctx.Context) error {
	if strings.TrimSpace(c.command) == "" {
		return fmt.Errorf("custom module %q: empty command", c.name)
	}
	outputs := modctx.ModuleSender(ctx, eventbus.WrapCustom[CustomOutput](c.name))
	failures := modctx.ModuleSender(ctx, eventbus.WrapCustom[Failure](c.name))
	c.slot.replace(ctx.Runtime().Spawn(c.ID(), func(tctx context.Context) {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			text, err := c.run(tctx)
			switch {
			case tctx.Err() != nil:
				return
			case err != nil:
				report(c.logger, "custom failure", failures.TrySend(Failure{Err: err}))
			default:
				report(c.logger, "custom output", outputs.TrySend(CustomOutput{Text: text}))
			}
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
			}
		}
	}))
	return nil
}

func (c *Custom) run(ctx context.Context) (string, error) {
	return bridge.ExecuteWithRetryLogger(ctx, c.logger, c.cfg, "custom:"+c.name, func() (string, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", c.command)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return "", bridge.Backend("custom:"+c.name, fmt.Errorf("%w: %s", err, msg))
			}
			return "", bridge.Backend("custom:"+c.name, err)
		}
		line, _, _ := strings.Cut(string(out), "\n")
		return strings.TrimSpace(line), nil
	})
}

// Handle implements Module.
func (c *Custom) Handle(msg any) {
	switch m := msg.(type) {
	case CustomOutput:
		c.text = m.Text
		c.failed = false
	case Failure:
		c.failed = true
	}
}

// View implements Module.
func (c *Custom) View() string {
	text := c.text
	if c.failed && text == "" {
		text = "!"
	}
	if text == "" {
		return ""
	}
	if c.icon != "" {
		return c.icon + " " + text
	}
	return text
}

// Urgent implements Urgent.
func (c *Custom) Urgent() bool { return c.failed }

// Close implements Module.
func (c *Custom) Close() { c.slot.stop() }

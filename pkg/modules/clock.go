package modules

import (
	"context"
	"log/slog"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
)

// DefaultClockFormat is a Go time layout.
const DefaultClockFormat = "Mon 02 Jan 15:04"

// ClockTick carries the time observed by the clock task.
type ClockTick struct {
	Now time.Time
}

// Clock shows the current time.
type Clock struct {
	format   string
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	current time.Time
	slot    taskSlot
}

// NewClock creates a clock. The interval defaults to one second when the
// layout shows seconds, otherwise to one minute.
func NewClock(format string, interval time.Duration, logger *slog.Logger) *Clock {
	if format == "" {
		format = DefaultClockFormat
	}
	if interval <= 0 {
		interval = time.Minute
		if showsSeconds(format) {
			interval = time.Second
		}
	}
	return &Clock{
		format:   format,
		interval: interval,
		now:      time.Now,
		logger:   orDefault(logger).With("module", "clock"),
	}
}

func showsSeconds(layout string) bool {
	t1 := time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC)
	t2 := t1.Add(time.Second)
	return t1.Format(layout) != t2.Format(layout)
}

// ID implements Module.
func (c *Clock) ID() string { return string(eventbus.Clock) }

// Register implements Module. The first tick is published immediately.
func (c *Clock) Register(ctx *modctx.Context) error {
	sender := modctx.ModuleSender(ctx, eventbus.Wrap[ClockTick](eventbus.Clock))
	c.current = c.now()
	c.slot.replace(ctx.Runtime().Spawn("clock", func(tctx context.Context) {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-ticker.C:
				report(c.logger, "clock tick", sender.TrySend(ClockTick{Now: c.now()}))
			}
		}
	}))
	return nil
}

// Handle implements Module.
func (c *Clock) Handle(msg any) {
	if t, ok := msg.(ClockTick); ok {
		c.current = t.Now
	}
}

// View implements Module.
func (c *Clock) View() string {
	if c.current.IsZero() {
		return ""
	}
	return c.current.Format(c.format)
}

// Detail shows the full date in the popup.
func (c *Clock) Detail() string {
	if c.current.IsZero() {
		return ""
	}
	return c.current.Format("Monday, 02 January 2006 15:04:05 MST")
}

// Close implements Module.
func (c *Clock) Close() { c.slot.stop() }

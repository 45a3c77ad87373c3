package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultTick is the drain interval when none is configured.
const DefaultTick = 50 * time.Millisecond

// TickCmd returns a bubbletea Cmd that sends a TickEvent after d. Each
// TickEvent drains the bus and schedules the next tick.
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickEvent{Time: t}
	})
}

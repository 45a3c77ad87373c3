// Package app is the bar's UI consumer: a bubbletea model that drains the
// event bus once per tick, dispatches module events to their owners and
// renders the bar with lipgloss.
//
// The model is the only reader of the bus and the only goroutine that
// touches module state.
package app

import "time"

// TickEvent is sent by the drain ticker.
type TickEvent struct {
	Time time.Time
}

// QuitEvent asks the program to exit; the control socket sends it.
type QuitEvent struct{}

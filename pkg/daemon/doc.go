// Package daemon holds the process-level plumbing of a running bar: the
// pid file that keeps a second instance from starting and the Unix
// control socket that lets scripts poke the UI loop.
package daemon

// Package service defines the contract between long-lived backing services
// (system metrics, network, cluster, device watchers) and the modules that
// display them.
//
// A subscription delivers exactly one Init carrying the initial state,
// followed by any number of Updates that the consumer folds into that
// state. Error events may arrive at any point and do not end the
// subscription. Read-write services also accept commands, each answered
// by a one-value future of further events.
package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by Emitter.Update before Init was sent.
var ErrNotInitialized = errors.New("service: update before init")

// ErrAlreadyInitialized is returned by a second Emitter.Init.
var ErrAlreadyInitialized = errors.New("service: init already sent")

// Kind identifies the variant carried by an Event.
type Kind int

const (
	KindInit Kind = iota
	KindUpdate
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindUpdate:
		return "update"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one service notification. Only the field matching Kind is set.
type Event[S, U any] struct {
	Kind   Kind
	State  S
	Update U
	Err    error
}

// InitEvent carries the initial service state.
func InitEvent[S, U any](state S) Event[S, U] {
	return Event[S, U]{Kind: KindInit, State: state}
}

// UpdateEvent carries an incremental change.
func UpdateEvent[S, U any](update U) Event[S, U] {
	return Event[S, U]{Kind: KindUpdate, Update: update}
}

// ErrorEvent carries a service-specific failure.
func ErrorEvent[S, U any](err error) Event[S, U] {
	return Event[S, U]{Kind: KindError, Err: err}
}

// State is implemented by service state types that can fold updates.
// Implementations are usually pointer receivers.
type State[U any] interface {
	Apply(update U)
}

// ReadOnly is a service that can only be observed. The returned channel is
// closed once ctx is done.
type ReadOnly[S, U any] interface {
	Subscribe(ctx context.Context) <-chan Event[S, U]
}

// ReadWrite is a ReadOnly service that also accepts commands. Command
// returns a channel that yields at most one event and is then closed.
type ReadWrite[S, U, C any] interface {
	ReadOnly[S, U]
	Command(ctx context.Context, cmd C) <-chan Event[S, U]
}

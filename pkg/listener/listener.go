// Package listener runs the reconnecting subscription loop shared by every
// push-based module: open a stream, forward the events that matter onto the
// bus, and when the stream fails or ends wait a fixed delay and open it
// again. The loop only stops when its context is cancelled.
package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// DefaultRetryDelay is the pause between a stream ending and the next open
// attempt when Spec.RetryDelay is unset.
const DefaultRetryDelay = 500 * time.Millisecond

// Stream yields events from an external source. Next blocks until an
// event is available, the stream fails, or ctx is done; it returns io.EOF
// when the source ends cleanly.
type Stream[E any] interface {
	Next(ctx context.Context) (E, error)
	Close() error
}

// Spec describes one listener. E is the source event type and T the
// module message published for relevant events.
type Spec[E, T any] struct {
	// Name labels log lines.
	Name string

	// Open starts a new stream. A failed open is retried after RetryDelay.
	Open func(ctx context.Context) (Stream[E], error)

	// Convert maps a source event to a module message. Returning false
	// marks the event as irrelevant; it is dropped silently.
	Convert func(E) (T, bool)

	// Publish delivers a message. Failures are logged and the loop keeps
	// going; events are never buffered for redelivery.
	Publish func(T) error

	// RetryDelay is the fixed pause before reopening. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration

	// IdleTimeout, when positive, logs a warning each time the stream goes
	// that long without producing an event. It never forces a reconnect.
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// Run drives spec until ctx is cancelled. It returns ctx.Err().
func Run[E, T any](ctx context.Context, spec Spec[E, T]) error {
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("listener", spec.Name)
	delay := spec.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stream, err := spec.Open(ctx)
		if err != nil {
			logger.Error("failed to start event stream", "error", err)
		} else {
			err = consume(ctx, logger, spec, stream)
			if cerr := stream.Close(); cerr != nil {
				logger.Debug("closing event stream", "error", cerr)
			}
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				logger.Warn("event stream ended")
			default:
				logger.Error("event stream error", "error", err)
			}
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// consume reads stream until it returns an error.
func consume[E, T any](ctx context.Context, logger *slog.Logger, spec Spec[E, T], stream Stream[E]) error {
	touch := func() {}
	if spec.IdleTimeout > 0 {
		var stop func()
		touch, stop = watchIdle(logger, spec.IdleTimeout)
		defer stop()
	}

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		touch()

		msg, ok := spec.Convert(ev)
		if !ok {
			continue
		}
		if err := spec.Publish(msg); err != nil {
			logger.Error("failed to publish update", "error", err)
		}
	}
}

// watchIdle warns every timeout that passes without a call to touch.
// stop ends the watch.
func watchIdle(logger *slog.Logger, timeout time.Duration) (touch, stop func()) {
	activity := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		t := time.NewTimer(timeout)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-activity:
				t.Reset(timeout)
			case <-t.C:
				logger.Warn("no events received, listener may be hung", "timeout", timeout)
				t.Reset(timeout)
			}
		}
	}()
	touch = func() {
		select {
		case activity <- struct{}{}:
		default:
		}
	}
	return touch, func() { close(done) }
}

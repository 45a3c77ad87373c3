// Package bridge runs blocking calls against external collaborators (the
// compositor IPC socket, system daemons) without stalling the caller, and
// layers per-call timeouts and linear-backoff retries on top.
//
// Every call runs on its own worker goroutine. Go cannot preempt a goroutine
// stuck in a blocking call, so a call that times out is abandoned rather
// than cancelled: it keeps running until the collaborator returns, and its
// result is then discarded. Callers pay that cost in exchange for a bounded
// wait.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// sleep is replaced in tests to record backoff delays.
var sleep = SleepWithBackoff

type outcome[R any] struct {
	val R
	err error
}

// ExecuteOnce runs fn on a dedicated goroutine and waits up to timeout for
// its result. It returns fn's result unchanged, a *TimeoutError when the
// budget elapses first, a *MessageError when the worker ended without
// producing a result (for instance after a panic), or ctx.Err() when the
// caller's context is cancelled.
func ExecuteOnce[R any](ctx context.Context, operation string, timeout time.Duration, fn func() (R, error)) (R, error) {
	return executeOnce(ctx, slog.Default(), operation, timeout, fn)
}

func executeOnce[R any](ctx context.Context, logger *slog.Logger, operation string, timeout time.Duration, fn func() (R, error)) (R, error) {
	var zero R
	results := make(chan outcome[R], 1)
	var abandoned atomic.Bool

	go func() {
		sent := false
		defer func() {
			if p := recover(); p != nil {
				logger.Error("blocking operation panicked", "operation", operation, "panic", fmt.Sprint(p))
			}
			if !sent {
				close(results)
			}
		}()
		val, err := fn()
		if abandoned.Load() {
			logger.Debug("result receiver gone, discarding late result", "operation", operation)
		}
		results <- outcome[R]{val: val, err: err}
		sent = true
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out, ok := <-results:
		if !ok {
			return zero, Message(operation, "worker terminated before sending result")
		}
		return out.val, out.err
	case <-timer.C:
		abandoned.Store(true)
		return zero, &TimeoutError{Operation: operation, Timeout: timeout}
	case <-ctx.Done():
		abandoned.Store(true)
		return zero, ctx.Err()
	}
}

// ExecuteWithRetry calls ExecuteOnce up to cfg.RetryAttempts times. Each
// failure is logged at warn level with its attempt number; between attempts
// it sleeps CalculateRetryDelay(cfg.RetryBackoff, attempt). The first
// success is returned immediately. When every attempt fails the last error
// is returned.
func ExecuteWithRetry[R any](ctx context.Context, cfg Config, operation string, fn func() (R, error)) (R, error) {
	return ExecuteWithRetryLogger(ctx, slog.Default(), cfg, operation, fn)
}

// ExecuteWithRetryLogger is ExecuteWithRetry with an explicit logger.
func ExecuteWithRetryLogger[R any](ctx context.Context, logger *slog.Logger, cfg Config, operation string, fn func() (R, error)) (R, error) {
	var zero R
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.Normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		val, err := executeOnce(ctx, logger, operation, cfg.RequestTimeout, fn)
		if err == nil {
			return val, nil
		}
		logger.Warn("operation failed",
			"operation", operation,
			"attempt", attempt,
			"attempts", cfg.RetryAttempts,
			"error", err,
		)
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if attempt < cfg.RetryAttempts {
			if err := sleep(ctx, CalculateRetryDelay(cfg.RetryBackoff, attempt)); err != nil {
				return zero, lastErr
			}
		}
	}

	if lastErr == nil {
		lastErr = Message(operation, "operation failed without error detail")
	}
	return zero, lastErr
}

// CalculateRetryDelay returns base*attempt, saturating at the largest
// representable duration. Attempt 0 (or negative) yields zero.
func CalculateRetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	if base > time.Duration(math.MaxInt64)/time.Duration(attempt) {
		return time.Duration(math.MaxInt64)
	}
	return base * time.Duration(attempt)
}

// SleepWithBackoff waits for d or until ctx is done. A zero or negative d
// returns immediately.
func SleepWithBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

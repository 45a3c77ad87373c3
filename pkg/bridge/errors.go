package bridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupported is wrapped by collaborators that cannot perform an
// operation at all, e.g. when the compositor is not running.
var ErrUnsupported = errors.New("operation not supported")

// TimeoutError reports that an operation did not deliver a result within
// its per-call budget. The worker goroutine may still be running.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %v", e.Operation, e.Timeout)
}

// MessageError is a generic failure with contextual text, used when no
// more specific classification applies.
type MessageError struct {
	Operation string
	Message   string
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("operation %q failed: %s", e.Operation, e.Message)
}

// BackendError wraps an error reported by the external collaborator.
type BackendError struct {
	Operation string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("operation %q failed: %v", e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend wraps err as a BackendError for operation. A nil err returns nil.
func Backend(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Operation: operation, Err: err}
}

// Message builds a MessageError.
func Message(operation, format string, args ...any) error {
	return &MessageError{Operation: operation, Message: fmt.Sprintf(format, args...)}
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

package bridge

import "time"

// Config holds the timeout and retry knobs for blocking calls.
type Config struct {
	// RequestTimeout bounds a single blocking call.
	RequestTimeout time.Duration

	// ListenerTimeout is how long an event listener may stay silent before
	// it is reported as possibly hung. It is informational: the bridge does
	// not enforce it.
	ListenerTimeout time.Duration

	// RetryAttempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	RetryAttempts int

	// RetryBackoff is the base of the linear backoff between attempts.
	RetryBackoff time.Duration
}

// DefaultConfig returns 2s request timeout, 60s listener timeout, 3
// attempts and 250ms backoff base.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  2 * time.Second,
		ListenerTimeout: 60 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    250 * time.Millisecond,
	}
}

// Normalized returns a copy with unusable values replaced: non-positive
// timeouts fall back to the defaults, RetryAttempts is at least 1 and a
// negative backoff becomes zero.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ListenerTimeout <= 0 {
		c.ListenerTimeout = def.ListenerTimeout
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}

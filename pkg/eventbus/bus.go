package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrPoisoned is returned once a panic has unwound through a bus critical
// section. The queue contents can no longer be trusted, so every later
// operation fails with this error instead of panicking.
var ErrPoisoned = errors.New("event queue state is poisoned")

// ErrZeroCapacity is returned by New when capacity is less than one.
var ErrZeroCapacity = errors.New("event bus capacity must be greater than zero")

// QueueFullError reports that a publish was rejected because the queue had
// reached its capacity. Callers should treat it as backpressure.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("event queue is full (capacity: %d)", e.Capacity)
}

// IsQueueFull reports whether err is (or wraps) a QueueFullError.
func IsQueueFull(err error) bool {
	var qf *QueueFullError
	return errors.As(err, &qf)
}

type queue struct {
	mu       sync.Mutex
	events   []BusEvent
	capacity int
	poisoned atomic.Bool
}

// locked runs fn with the queue mutex held. A panic inside fn marks the
// queue poisoned before it propagates.
func (q *queue) locked(fn func()) error {
	q.mu.Lock()
	if q.poisoned.Load() {
		q.mu.Unlock()
		return ErrPoisoned
	}
	completed := false
	defer func() {
		if !completed {
			q.poisoned.Store(true)
		}
		q.mu.Unlock()
	}()
	fn()
	completed = true
	return nil
}

// Bus owns the bounded queue. Sender and Receiver handles share it by
// reference and are cheap to copy.
type Bus struct {
	q *queue
}

// New constructs a bus holding at most capacity events.
func New(capacity int) (*Bus, error) {
	if capacity < 1 {
		return nil, ErrZeroCapacity
	}
	return &Bus{q: &queue{
		events:   make([]BusEvent, 0, capacity),
		capacity: capacity,
	}}, nil
}

// Sender returns a producer handle.
func (b *Bus) Sender() Sender { return Sender{q: b.q} }

// Receiver returns a consumer handle.
func (b *Bus) Receiver() Receiver { return Receiver{q: b.q} }

// Capacity returns the configured maximum queue length.
func (b *Bus) Capacity() int { return b.q.capacity }

// Len returns the number of queued events. A poisoned bus reports zero.
func (b *Bus) Len() int {
	n := 0
	_ = b.q.locked(func() { n = len(b.q.events) })
	return n
}

// Poisoned reports whether the bus has been poisoned.
func (b *Bus) Poisoned() bool { return b.q.poisoned.Load() }

// Sender enqueues events. The zero value is not usable.
type Sender struct {
	q *queue
}

// Publish appends ev to the tail of the queue.
//
// A Redraw or PopupToggle whose kind matches the current tail is coalesced:
// it is discarded and nil is returned. Coalescing is checked before capacity,
// so a coalescable event is accepted even when the queue is full. Any other
// publish onto a full queue returns a *QueueFullError and leaves the queue
// unchanged.
func (s Sender) Publish(ev BusEvent) error {
	var err error
	lockErr := s.q.locked(func() {
		if n := len(s.q.events); n > 0 && ev.coalescesWith(s.q.events[n-1]) {
			return
		}
		if len(s.q.events) >= s.q.capacity {
			err = &QueueFullError{Capacity: s.q.capacity}
			return
		}
		s.q.events = append(s.q.events, ev)
	})
	if lockErr != nil {
		return lockErr
	}
	return err
}

// Receiver removes events in FIFO order. It never blocks.
type Receiver struct {
	q *queue
}

// Drain removes and returns every queued event in publish order. An empty
// queue yields a nil slice and no error.
func (r Receiver) Drain() ([]BusEvent, error) {
	var out []BusEvent
	err := r.q.locked(func() {
		if len(r.q.events) == 0 {
			return
		}
		out = r.q.events
		r.q.events = make([]BusEvent, 0, r.q.capacity)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TryRecv removes and returns the head event. ok is false when the queue
// is empty.
func (r Receiver) TryRecv() (ev BusEvent, ok bool, err error) {
	err = r.q.locked(func() {
		if len(r.q.events) == 0 {
			return
		}
		ev, ok = r.q.events[0], true
		r.q.events[0] = BusEvent{}
		r.q.events = r.q.events[1:]
	})
	return ev, ok, err
}

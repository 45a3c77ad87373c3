package service

import (
	"context"
	"sync"
)

// Emitter is the producer side of one subscription. It enforces the
// ordering guarantee: a single Init before any Update. Sends block until
// the consumer receives or ctx is done.
type Emitter[S, U any] struct {
	ctx context.Context
	out chan<- Event[S, U]

	mu          sync.Mutex
	initialized bool
}

// NewEmitter wraps out for a subscription bound to ctx.
func NewEmitter[S, U any](ctx context.Context, out chan<- Event[S, U]) *Emitter[S, U] {
	return &Emitter[S, U]{ctx: ctx, out: out}
}

// Init sends the initial state. Only the first call succeeds.
func (e *Emitter[S, U]) Init(state S) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return ErrAlreadyInitialized
	}
	e.initialized = true
	e.mu.Unlock()
	return e.send(InitEvent[S, U](state))
}

// Update sends an incremental change. It fails with ErrNotInitialized
// until Init has been sent.
func (e *Emitter[S, U]) Update(update U) error {
	if !e.Initialized() {
		return ErrNotInitialized
	}
	return e.send(UpdateEvent[S, U](update))
}

// Error sends a failure. It is valid at any time.
func (e *Emitter[S, U]) Error(err error) error {
	return e.send(ErrorEvent[S, U](err))
}

// Initialized reports whether Init has been sent.
func (e *Emitter[S, U]) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *Emitter[S, U]) send(ev Event[S, U]) error {
	select {
	case e.out <- ev:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// Start runs produce in a goroutine and returns the subscription channel.
// The channel is closed when produce returns; produce should return once
// ctx is done.
func Start[S, U any](ctx context.Context, buffer int, produce func(ctx context.Context, em *Emitter[S, U])) <-chan Event[S, U] {
	ch := make(chan Event[S, U], buffer)
	go func() {
		defer close(ch)
		produce(ctx, NewEmitter[S, U](ctx, ch))
	}()
	return ch
}

// Future runs fn in a goroutine and delivers its single event. The
// channel is closed after delivery, or without a value if ctx ends first.
func Future[S, U any](ctx context.Context, fn func(ctx context.Context) Event[S, U]) <-chan Event[S, U] {
	ch := make(chan Event[S, U], 1)
	go func() {
		defer close(ch)
		ev := fn(ctx)
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}()
	return ch
}

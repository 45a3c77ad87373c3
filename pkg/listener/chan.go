package listener

import (
	"context"
	"io"
	"sync"
)

// Item is one element delivered on a ChanStream: either an event or a
// stream-level error.
type Item[E any] struct {
	Event E
	Err   error
}

// ChanStream adapts a receive channel into a Stream. A closed channel ends
// the stream with io.EOF; an Item carrying Err ends it with that error.
type ChanStream[E any] struct {
	ch      <-chan Item[E]
	once    sync.Once
	onClose func()
}

// NewChanStream wraps ch. onClose, if non-nil, runs once on Close.
func NewChanStream[E any](ch <-chan Item[E], onClose func()) *ChanStream[E] {
	return &ChanStream[E]{ch: ch, onClose: onClose}
}

// Next implements Stream.
func (s *ChanStream[E]) Next(ctx context.Context) (E, error) {
	var zero E
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case it, ok := <-s.ch:
		if !ok {
			return zero, io.EOF
		}
		if it.Err != nil {
			return zero, it.Err
		}
		return it.Event, nil
	}
}

// Close implements Stream.
func (s *ChanStream[E]) Close() error {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

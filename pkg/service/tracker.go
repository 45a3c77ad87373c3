package service

// Tracker folds a subscription into the consumer's view of the service:
// the current state, whether Init has arrived, and the most recent error.
type Tracker[S State[U], U any] struct {
	state       S
	initialized bool
	lastErr     error
	updates     int
}

// Apply consumes one event and reports whether the visible state changed.
// An Update received before Init is dropped.
func (t *Tracker[S, U]) Apply(ev Event[S, U]) bool {
	switch ev.Kind {
	case KindInit:
		t.state = ev.State
		t.initialized = true
		t.lastErr = nil
		return true
	case KindUpdate:
		if !t.initialized {
			return false
		}
		t.state.Apply(ev.Update)
		t.updates++
		return true
	case KindError:
		t.lastErr = ev.Err
		return true
	}
	return false
}

// State returns the current state and whether Init has been received.
func (t *Tracker[S, U]) State() (S, bool) { return t.state, t.initialized }

// Err returns the most recent error, cleared by the next Init.
func (t *Tracker[S, U]) Err() error { return t.lastErr }

// Updates returns the number of updates folded since the tracker was created.
func (t *Tracker[S, U]) Updates() int { return t.updates }

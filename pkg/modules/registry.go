package modules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
)

// Status tracks the runtime state of a single module.
type Status struct {
	ID         string    `json:"id"`
	Registered bool      `json:"registered"`
	Events     int64     `json:"events"`
	Errors     int64     `json:"errors"`
	LastError  string    `json:"last_error,omitempty"`
	LastEvent  time.Time `json:"last_event,omitzero"`
}

// Registry manages the bar's modules in display order. It is safe for
// concurrent use; module methods are only called from the goroutine that
// calls RegisterAll, Dispatch and Views.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	modules  map[string]Module
	statuses map[string]*Status
	unrouted int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules:  make(map[string]Module),
		statuses: make(map[string]*Status),
	}
}

// Add appends a module. It returns an error if the ID is taken.
func (r *Registry) Add(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := m.ID()
	if _, exists := r.modules[id]; exists {
		return fmt.Errorf("module %q already added", id)
	}
	r.order = append(r.order, id)
	r.modules[id] = m
	r.statuses[id] = &Status{ID: id}
	return nil
}

// Get returns the module with the given ID.
func (r *Registry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// List returns module IDs in display order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// RegisterAll registers every module with ctx. A failing module is
// recorded and skipped; the joined errors are returned.
func (r *Registry) RegisterAll(ctx *modctx.Context) error {
	var errs []error
	for _, id := range r.List() {
		m, _ := r.Get(id)
		err := m.Register(ctx)
		r.updateStatus(id, func(s *Status) {
			s.Registered = err == nil
			if err != nil {
				s.Errors++
				s.LastError = err.Error()
			}
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch routes a module event to its owner. It reports false when no
// module has the event's key.
func (r *Registry) Dispatch(ev eventbus.ModuleEvent) bool {
	key := ev.Key()
	m, ok := r.Get(key)
	if !ok {
		r.mu.Lock()
		r.unrouted++
		r.mu.Unlock()
		return false
	}

	r.updateStatus(key, func(s *Status) {
		s.Events++
		s.LastEvent = time.Now()
		if f, isFailure := ev.Message.(Failure); isFailure && f.Err != nil {
			s.Errors++
			s.LastError = f.Err.Error()
		}
	})
	m.Handle(ev.Message)
	return true
}

// Unrouted returns the number of events that matched no module.
func (r *Registry) Unrouted() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unrouted
}

// Segment is one rendered module.
type Segment struct {
	ID     string
	Text   string
	Urgent bool
}

// Views renders every visible module in display order.
func (r *Registry) Views() []Segment {
	var out []Segment
	for _, id := range r.List() {
		m, _ := r.Get(id)
		text := m.View()
		if text == "" {
			continue
		}
		seg := Segment{ID: id, Text: text}
		if u, ok := m.(Urgent); ok {
			seg.Urgent = u.Urgent()
		}
		out = append(out, seg)
	}
	return out
}

// Details collects popup sections from modules implementing Detailer.
func (r *Registry) Details() []Segment {
	var out []Segment
	for _, id := range r.List() {
		m, _ := r.Get(id)
		d, ok := m.(Detailer)
		if !ok {
			continue
		}
		if text := d.Detail(); text != "" {
			out = append(out, Segment{ID: id, Text: text})
		}
	}
	return out
}

// Status returns a copy of one module's status.
func (r *Registry) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// AllStatus returns a copy of all statuses, sorted by ID.
func (r *Registry) AllStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// CloseAll stops every module's background work.
func (r *Registry) CloseAll() {
	for _, id := range r.List() {
		m, _ := r.Get(id)
		m.Close()
		r.updateStatus(id, func(s *Status) { s.Registered = false })
	}
}

func (r *Registry) updateStatus(id string, fn func(s *Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statuses[id]; ok {
		fn(s)
	}
}

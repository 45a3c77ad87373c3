package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

type counterState struct {
	Value int
}

func (c *counterState) Apply(delta int) { c.Value += delta }

type counterService struct {
	start  int
	deltas []int
	fail   error
}

func (s counterService) Subscribe(ctx context.Context) <-chan Event[*counterState, int] {
	return Start(ctx, 0, func(ctx context.Context, em *Emitter[*counterState, int]) {
		if s.fail != nil {
			_ = em.Error(s.fail)
		}
		if err := em.Init(&counterState{Value: s.start}); err != nil {
			return
		}
		for _, d := range s.deltas {
			if err := em.Update(d); err != nil {
				return
			}
		}
		<-ctx.Done()
	})
}

func (s counterService) Command(ctx context.Context, reset bool) <-chan Event[*counterState, int] {
	return Future(ctx, func(context.Context) Event[*counterState, int] {
		if !reset {
			return ErrorEvent[*counterState, int](errors.New("unsupported command"))
		}
		return InitEvent[*counterState, int](&counterState{})
	})
}

var _ ReadWrite[*counterState, int, bool] = counterService{}

func collect(t *testing.T, ch <-chan Event[*counterState, int], n int) []Event[*counterState, int] {
	t.Helper()
	out := make([]Event[*counterState, int], 0, n)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d events, want %d", len(out), n)
			}
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d events, want %d", len(out), n)
		}
	}
	return out
}

func TestSubscriptionInitThenUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := counterService{start: 10, deltas: []int{1, 2, 3}}
	events := collect(t, svc.Subscribe(ctx), 4)

	if events[0].Kind != KindInit {
		t.Fatalf("first event = %v, want init", events[0].Kind)
	}
	var tr Tracker[*counterState, int]
	for _, ev := range events {
		tr.Apply(ev)
	}
	state, ok := tr.State()
	if !ok {
		t.Fatal("tracker not initialized")
	}
	if state.Value != 16 {
		t.Errorf("Value = %d, want 16", state.Value)
	}
	if tr.Updates() != 3 {
		t.Errorf("Updates = %d, want 3", tr.Updates())
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := counterService{}.Subscribe(ctx)
	collect(t, ch, 1)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed after cancel")
	}
}

func TestErrorDoesNotEndSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := counterService{start: 1, deltas: []int{4}, fail: errors.New("sensor unavailable")}
	events := collect(t, svc.Subscribe(ctx), 3)

	if events[0].Kind != KindError || events[1].Kind != KindInit || events[2].Kind != KindUpdate {
		t.Fatalf("kinds = %v %v %v", events[0].Kind, events[1].Kind, events[2].Kind)
	}

	var tr Tracker[*counterState, int]
	tr.Apply(events[0])
	if tr.Err() == nil {
		t.Error("tracker should record the error")
	}
	tr.Apply(events[1])
	if tr.Err() != nil {
		t.Error("init should clear the error")
	}
}

func TestEmitterRejectsUpdateBeforeInit(t *testing.T) {
	ch := make(chan Event[*counterState, int], 4)
	em := NewEmitter[*counterState, int](context.Background(), ch)

	if err := em.Update(1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Update before Init = %v, want ErrNotInitialized", err)
	}
	if err := em.Error(errors.New("boom")); err != nil {
		t.Fatalf("Error before Init: %v", err)
	}
	if err := em.Init(&counterState{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := em.Init(&counterState{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init = %v, want ErrAlreadyInitialized", err)
	}
	if err := em.Update(2); err != nil {
		t.Fatalf("Update after Init: %v", err)
	}
	if len(ch) != 3 {
		t.Errorf("queued = %d, want 3", len(ch))
	}
}

func TestEmitterSendHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	em := NewEmitter[*counterState, int](ctx, make(chan Event[*counterState, int]))
	cancel()
	if err := em.Init(&counterState{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Init on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestTrackerDropsUpdateBeforeInit(t *testing.T) {
	var tr Tracker[*counterState, int]
	if tr.Apply(UpdateEvent[*counterState, int](5)) {
		t.Error("update before init reported a change")
	}
	if _, ok := tr.State(); ok {
		t.Error("tracker should not be initialized")
	}
}

func TestCommandFuture(t *testing.T) {
	ctx := context.Background()
	svc := counterService{}

	ev, ok := <-svc.Command(ctx, true)
	if !ok || ev.Kind != KindInit {
		t.Fatalf("reset command = %+v, %v", ev, ok)
	}
	ev = <-svc.Command(ctx, false)
	if ev.Kind != KindError {
		t.Errorf("unsupported command kind = %v, want error", ev.Kind)
	}

	ch := svc.Command(ctx, true)
	<-ch
	if _, ok := <-ch; ok {
		t.Error("command future delivered more than one value")
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindInit: "init", KindUpdate: "update", KindError: "error", Kind(9): "kind(9)"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

package modules

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/eventbus"
	"github.com/RAprogramm/hydebar-sub001/pkg/modctx"
	"github.com/RAprogramm/hydebar-sub001/pkg/tasks"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// harness wires a bus, a task runtime and a registry the way the bar
// does, and plays the UI loop in pump.
type harness struct {
	bus *eventbus.Bus
	rt  *tasks.Runtime
	ctx *modctx.Context
	reg *Registry
}

func newHarness(t *testing.T, mods ...Module) *harness {
	t.Helper()
	return newHarnessCap(t, 64, mods...)
}

func newHarnessCap(t *testing.T, capacity int, mods ...Module) *harness {
	t.Helper()
	bus, err := eventbus.New(capacity)
	if err != nil {
		t.Fatal(err)
	}
	rt := tasks.New(context.Background(), quiet)
	h := &harness{bus: bus, rt: rt, ctx: modctx.New(bus.Sender(), rt), reg: NewRegistry()}
	for _, m := range mods {
		if err := h.reg.Add(m); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		h.reg.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.Shutdown(ctx)
	})
	return h
}

func (h *harness) register(t *testing.T) {
	t.Helper()
	if err := h.reg.RegisterAll(h.ctx); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
}

// pump drains the bus into the registry until cond holds.
func (h *harness) pump(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		events, err := h.bus.Receiver().Drain()
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		for _, ev := range events {
			if me, ok := ev.ModuleEvent(); ok {
				h.reg.Dispatch(me)
			}
		}
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

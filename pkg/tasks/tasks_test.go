package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnRunsTask(t *testing.T) {
	rt := New(context.Background(), nil)
	var ran atomic.Bool

	h := rt.Spawn("once", func(ctx context.Context) { ran.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran.Load() {
		t.Error("task did not run")
	}
	if h.Name() != "once" {
		t.Errorf("Name = %q, want %q", h.Name(), "once")
	}
}

func TestAbortCancelsTaskContext(t *testing.T) {
	rt := New(context.Background(), nil)
	started := make(chan struct{})

	h := rt.Spawn("loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	if rt.Active() != 1 {
		t.Errorf("Active = %d, want 1", rt.Active())
	}

	h.Abort()
	h.Abort()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after Abort")
	}
	if rt.Active() != 0 {
		t.Errorf("Active after abort = %d, want 0", rt.Active())
	}
}

func TestPanicIsRecovered(t *testing.T) {
	rt := New(context.Background(), nil)

	h := rt.Spawn("faulty", func(ctx context.Context) { panic("module bug") })

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("panicking task never completed")
	}

	// The runtime stays usable.
	h2 := rt.Spawn("healthy", func(ctx context.Context) {})
	<-h2.Done()
}

func TestShutdownWaitsForTasks(t *testing.T) {
	rt := New(context.Background(), nil)
	var stopped atomic.Int32

	for i := 0; i < 5; i++ {
		rt.Spawn("worker", func(ctx context.Context) {
			<-ctx.Done()
			stopped.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := stopped.Load(); got != 5 {
		t.Errorf("stopped = %d, want 5", got)
	}
}

func TestShutdownTimesOutOnStuckTask(t *testing.T) {
	rt := New(context.Background(), nil)
	release := make(chan struct{})
	defer close(release)

	rt.Spawn("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rt.Shutdown(ctx); err == nil {
		t.Fatal("Shutdown should report the stuck task")
	}
}

package kube

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/RAprogramm/hydebar-sub001/pkg/service"
)

func pod(name string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "apps"},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

type fakePodClient struct {
	mu       sync.Mutex
	pods     []corev1.Pod
	listErr  error
	watchers []*watch.FakeWatcher
	lists    int
}

func (f *fakePodClient) ListPods(ctx context.Context, ns string) (*corev1.PodList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &corev1.PodList{
		ListMeta: metav1.ListMeta{ResourceVersion: "100"},
		Items:    append([]corev1.Pod(nil), f.pods...),
	}, nil
}

func (f *fakePodClient) WatchPods(ctx context.Context, ns, rv string) (watch.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := watch.NewFakeWithChanSize(8, false)
	f.watchers = append(f.watchers, w)
	return w, nil
}

func (f *fakePodClient) watcher(t *testing.T, i int) *watch.FakeWatcher {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.watchers) > i {
			w := f.watchers[i]
			f.mu.Unlock()
			return w
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watch #%d never opened", i)
	return nil
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestListThenWatch(t *testing.T) {
	fc := &fakePodClient{pods: []corev1.Pod{*pod("api-0", corev1.PodRunning), *pod("job-1", corev1.PodPending)}}
	svc := New(fc, "apps", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := svc.Subscribe(ctx)

	var tr service.Tracker[*Pods, PodChange]
	init := next(t, ch)
	if init.Kind != service.KindInit || len(init.State.Phases) != 2 {
		t.Fatalf("init = %+v", init)
	}
	tr.Apply(init)

	w := fc.watcher(t, 0)
	w.Modify(pod("job-1", corev1.PodSucceeded))
	w.Add(pod("web-2", corev1.PodRunning))
	w.Delete(pod("api-0", corev1.PodRunning))
	for i := 0; i < 3; i++ {
		tr.Apply(next(t, ch))
	}

	st, _ := tr.State()
	if got := st.Names(); len(got) != 2 || got[0] != "job-1" || got[1] != "web-2" {
		t.Errorf("Names = %v", got)
	}
	counts := st.Counts()
	if counts[corev1.PodSucceeded] != 1 || counts[corev1.PodRunning] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}

func TestWatchEndTriggersResync(t *testing.T) {
	fc := &fakePodClient{pods: []corev1.Pod{*pod("api-0", corev1.PodRunning)}}
	svc := New(fc, "apps", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := svc.Subscribe(ctx)
	next(t, ch)

	fc.mu.Lock()
	fc.pods = append(fc.pods, *pod("api-1", corev1.PodRunning))
	fc.mu.Unlock()
	fc.watcher(t, 0).Stop()

	ev := next(t, ch)
	if ev.Kind != service.KindUpdate || len(ev.Update.Resync) != 2 {
		t.Fatalf("resync event = %+v", ev)
	}
	fc.watcher(t, 1)
}

func TestWatchErrorEventEndsStream(t *testing.T) {
	fc := &fakePodClient{}
	svc := New(fc, "apps", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := svc.Subscribe(ctx)
	next(t, ch)

	fc.watcher(t, 0).Error(&metav1.Status{Status: metav1.StatusFailure, Message: "too old resource version", Code: 410})
	if ev := next(t, ch); ev.Kind != service.KindUpdate || ev.Update.Resync == nil {
		t.Fatalf("event after watch error = %+v, want resync", ev)
	}
}

func TestListFailureReported(t *testing.T) {
	fc := &fakePodClient{listErr: errors.New("connection refused")}
	svc := New(fc, "", 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ev := next(t, svc.Subscribe(ctx))
	if ev.Kind != service.KindError {
		t.Fatalf("event = %+v, want error", ev)
	}
	if svc.namespace != "default" {
		t.Errorf("namespace = %q, want default", svc.namespace)
	}
}

func TestConvertIgnoresNonPods(t *testing.T) {
	if _, ok := convert(watch.Event{Type: watch.Bookmark, Object: &corev1.Pod{}}); ok {
		t.Error("bookmark should be ignored")
	}
	if _, ok := convert(watch.Event{Type: watch.Added, Object: &corev1.Node{}}); ok {
		t.Error("non-pod object should be ignored")
	}
}

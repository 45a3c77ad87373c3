// Package kube is a push-based read-only service that tracks pod phases in
// one namespace. It lists the pods once, then follows a watch; when the
// watch ends (API servers close watches routinely) it relists and watches
// again.
package kube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/service"
)

// DefaultRetryDelay is the pause before relisting after a failure.
const DefaultRetryDelay = 10 * time.Second

// PodClient abstracts the two pod calls the service makes.
type PodClient interface {
	ListPods(ctx context.Context, namespace string) (*corev1.PodList, error)
	WatchPods(ctx context.Context, namespace, resourceVersion string) (watch.Interface, error)
}

type clientset struct {
	cs kubernetes.Interface
}

func (c *clientset) ListPods(ctx context.Context, namespace string) (*corev1.PodList, error) {
	return c.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
}

func (c *clientset) WatchPods(ctx context.Context, namespace, rv string) (watch.Interface, error) {
	return c.cs.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{
		ResourceVersion:     rv,
		AllowWatchBookmarks: true,
	})
}

// NewClient builds a PodClient from a kubeconfig path and context name.
// Empty values use the default loading rules (KUBECONFIG, ~/.kube/config,
// in-cluster) and the current context.
func NewClient(kubeconfig, contextName string) (PodClient, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("build client config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return &clientset{cs: cs}, nil
}

// Pods is the service state: pod name to phase.
type Pods struct {
	Namespace string
	Phases    map[string]corev1.PodPhase
}

// PodChange is one update. Resync replaces the whole map after a relist;
// otherwise Name/Phase describe a single pod and Deleted removes it.
type PodChange struct {
	Resync  map[string]corev1.PodPhase
	Name    string
	Phase   corev1.PodPhase
	Deleted bool
}

// Apply implements service.State.
func (p *Pods) Apply(c PodChange) {
	if c.Resync != nil {
		p.Phases = c.Resync
		return
	}
	if p.Phases == nil {
		p.Phases = make(map[string]corev1.PodPhase)
	}
	if c.Deleted {
		delete(p.Phases, c.Name)
		return
	}
	p.Phases[c.Name] = c.Phase
}

// Counts returns the number of pods per phase.
func (p *Pods) Counts() map[corev1.PodPhase]int {
	out := make(map[corev1.PodPhase]int)
	for _, ph := range p.Phases {
		out[ph]++
	}
	return out
}

// Names returns pod names in sorted order.
func (p *Pods) Names() []string {
	names := make([]string, 0, len(p.Phases))
	for n := range p.Phases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Event is the service event type.
type Event = service.Event[*Pods, PodChange]

// Service watches pods in one namespace.
type Service struct {
	client     PodClient
	namespace  string
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a service. An empty namespace means "default".
func New(client PodClient, namespace string, retryDelay time.Duration, logger *slog.Logger) *Service {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:     client,
		namespace:  namespace,
		retryDelay: retryDelay,
		logger:     logger.With("service", "kube", "namespace", namespace),
	}
}

// Subscribe implements service.ReadOnly.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	return service.Start(ctx, 8, func(ctx context.Context, em *service.Emitter[*Pods, PodChange]) {
		_ = listener.Run(ctx, listener.Spec[watch.Event, PodChange]{
			Name: "kube",
			Open: func(ctx context.Context) (listener.Stream[watch.Event], error) {
				return s.open(ctx, em)
			},
			Convert:    convert,
			Publish:    em.Update,
			RetryDelay: s.retryDelay,
			Logger:     s.logger,
		})
	})
}

// open lists pods, publishing the result as Init (first time) or as a
// resync Update, then starts a watch from the list's resource version.
func (s *Service) open(ctx context.Context, em *service.Emitter[*Pods, PodChange]) (listener.Stream[watch.Event], error) {
	list, err := s.client.ListPods(ctx, s.namespace)
	if err != nil {
		err = fmt.Errorf("list pods: %w", err)
		_ = em.Error(err)
		return nil, err
	}

	phases := make(map[string]corev1.PodPhase, len(list.Items))
	for i := range list.Items {
		phases[list.Items[i].Name] = list.Items[i].Status.Phase
	}
	if em.Initialized() {
		err = em.Update(PodChange{Resync: phases})
	} else {
		err = em.Init(&Pods{Namespace: s.namespace, Phases: phases})
	}
	if err != nil {
		return nil, err
	}

	w, err := s.client.WatchPods(ctx, s.namespace, list.ResourceVersion)
	if err != nil {
		err = fmt.Errorf("watch pods: %w", err)
		_ = em.Error(err)
		return nil, err
	}
	return &watchStream{w: w}, nil
}

func convert(ev watch.Event) (PodChange, bool) {
	pod, ok := ev.Object.(*corev1.Pod)
	if !ok {
		return PodChange{}, false
	}
	switch ev.Type {
	case watch.Added, watch.Modified:
		return PodChange{Name: pod.Name, Phase: pod.Status.Phase}, true
	case watch.Deleted:
		return PodChange{Name: pod.Name, Deleted: true}, true
	}
	return PodChange{}, false
}

var _ service.ReadOnly[*Pods, PodChange] = (*Service)(nil)

// watchStream adapts watch.Interface to listener.Stream. A closed result
// channel ends the stream with io.EOF; a watch.Error event ends it with
// the status error it carries.
type watchStream struct {
	w watch.Interface
}

func (ws *watchStream) Next(ctx context.Context) (watch.Event, error) {
	select {
	case <-ctx.Done():
		return watch.Event{}, ctx.Err()
	case ev, ok := <-ws.w.ResultChan():
		if !ok {
			return watch.Event{}, io.EOF
		}
		if ev.Type == watch.Error {
			return watch.Event{}, apierrors.FromObject(ev.Object)
		}
		return ev, nil
	}
}

func (ws *watchStream) Close() error {
	ws.w.Stop()
	return nil
}

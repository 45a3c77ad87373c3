// Package tailnet is a push-based read-write service exposing the local
// Tailscale node: backend state, peers and exit node. It subscribes to the
// daemon's IPN notification bus and can bring the node up or down.
package tailnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tailscale.com/ipn"
	"tailscale.com/ipn/ipnstate"

	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/service"
)

// DefaultRetryDelay is the pause before reopening a failed bus watch.
const DefaultRetryDelay = 5 * time.Second

// Client is the subset of tailscale.com/client/local.Client the service
// uses. NewLocalClient returns the real implementation.
type Client interface {
	Status(ctx context.Context) (*ipnstate.Status, error)
	WatchIPNBus(ctx context.Context, mask ipn.NotifyWatchOpt) (Watcher, error)
	EditPrefs(ctx context.Context, mp *ipn.MaskedPrefs) (*ipn.Prefs, error)
}

// Watcher yields IPN bus notifications until closed or its context ends.
type Watcher interface {
	Next() (ipn.Notify, error)
	Close() error
}

// Peer summarises one node.
type Peer struct {
	HostName string
	DNSName  string
	IPs      []string
	Online   bool
	ExitNode bool
}

// Status is the service state.
type Status struct {
	BackendState string
	Self         Peer
	TailnetName  string
	Peers        []Peer
	OnlinePeers  int
	// ExitNode is the host name of the active exit node, if any.
	ExitNode string
	// LastMessage is the most recent error text reported by the daemon.
	LastMessage string
}

// Running reports whether the backend is connected.
func (s *Status) Running() bool { return s.BackendState == ipn.Running.String() }

// Change is one update. Nil fields are unchanged.
type Change struct {
	BackendState *string
	// Refreshed replaces peers, self and exit node.
	Refreshed *Status
	Message   *string
}

// Apply implements service.State.
func (s *Status) Apply(c Change) {
	if c.Refreshed != nil {
		msg := s.LastMessage
		*s = *c.Refreshed
		if s.LastMessage == "" {
			s.LastMessage = msg
		}
	}
	if c.BackendState != nil {
		s.BackendState = *c.BackendState
	}
	if c.Message != nil {
		s.LastMessage = *c.Message
	}
}

// Command is a request to change the node's state.
type Command int

const (
	Connect Command = iota
	Disconnect
)

func (c Command) String() string {
	if c == Connect {
		return "connect"
	}
	return "disconnect"
}

// Event is the service event type.
type Event = service.Event[*Status, Change]

// Service implements service.ReadWrite for a tailscaled instance.
type Service struct {
	client     Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a service. retryDelay <= 0 uses DefaultRetryDelay.
func New(client Client, retryDelay time.Duration, logger *slog.Logger) *Service {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, retryDelay: retryDelay, logger: logger.With("service", "tailnet")}
}

// Subscribe implements service.ReadOnly. The initial state comes from a
// full status query; after that every bus notification that changes the
// backend state or the network map triggers an update.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	return service.Start(ctx, 4, func(ctx context.Context, em *service.Emitter[*Status, Change]) {
		_ = listener.Run(ctx, listener.Spec[ipn.Notify, Change]{
			Name: "tailnet",
			Open: func(ctx context.Context) (listener.Stream[ipn.Notify], error) {
				return s.open(ctx, em)
			},
			Convert: func(n ipn.Notify) (Change, bool) {
				return s.convert(ctx, n)
			},
			Publish:    em.Update,
			RetryDelay: s.retryDelay,
			Logger:     s.logger,
		})
	})
}

// open sends Init once, then starts a bus watch. Failures are reported to
// the subscriber before the listener retries.
func (s *Service) open(ctx context.Context, em *service.Emitter[*Status, Change]) (listener.Stream[ipn.Notify], error) {
	if !em.Initialized() {
		st, err := s.status(ctx)
		if err != nil {
			_ = em.Error(err)
			return nil, err
		}
		if err := em.Init(st); err != nil {
			return nil, err
		}
	}
	w, err := s.client.WatchIPNBus(ctx, ipn.NotifyInitialState)
	if err != nil {
		err = fmt.Errorf("watch ipn bus: %w", err)
		_ = em.Error(err)
		return nil, err
	}
	return &watcherStream{w: w}, nil
}

func (s *Service) convert(ctx context.Context, n ipn.Notify) (Change, bool) {
	var c Change
	changed := false
	if n.ErrMessage != nil {
		msg := *n.ErrMessage
		c.Message = &msg
		changed = true
	}
	if n.State != nil || n.NetMap != nil {
		st, err := s.status(ctx)
		if err != nil {
			s.logger.Warn("status refresh failed", "error", err)
			if n.State != nil {
				state := n.State.String()
				c.BackendState = &state
				changed = true
			}
			return c, changed
		}
		c.Refreshed = st
		changed = true
	}
	return c, changed
}

func (s *Service) status(ctx context.Context) (*Status, error) {
	st, err := s.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailscale status: %w", err)
	}
	if st == nil {
		return nil, errors.New("tailscale status: nil response")
	}
	return mapStatus(st), nil
}

// Command implements service.ReadWrite.
func (s *Service) Command(ctx context.Context, cmd Command) <-chan Event {
	return service.Future(ctx, func(ctx context.Context) Event {
		want := cmd == Connect
		_, err := s.client.EditPrefs(ctx, &ipn.MaskedPrefs{
			Prefs:          ipn.Prefs{WantRunning: want},
			WantRunningSet: true,
		})
		if err != nil {
			return service.ErrorEvent[*Status, Change](fmt.Errorf("%s: %w", cmd, err))
		}
		st, err := s.status(ctx)
		if err != nil {
			return service.ErrorEvent[*Status, Change](err)
		}
		return service.UpdateEvent[*Status, Change](Change{Refreshed: st})
	})
}

var _ service.ReadWrite[*Status, Change, Command] = (*Service)(nil)

// watcherStream adapts a Watcher to listener.Stream. The watcher is bound
// to the context it was opened with, so Next ignores its own ctx.
type watcherStream struct {
	w Watcher
}

func (ws *watcherStream) Next(context.Context) (ipn.Notify, error) { return ws.w.Next() }

func (ws *watcherStream) Close() error { return ws.w.Close() }

// mapStatus converts ipnstate.Status into Status.
func mapStatus(st *ipnstate.Status) *Status {
	out := &Status{BackendState: st.BackendState}
	if st.CurrentTailnet != nil {
		out.TailnetName = st.CurrentTailnet.Name
	}
	if st.Self != nil {
		out.Self = mapPeer(st.Self)
	}
	for _, k := range st.Peers() {
		ps := st.Peer[k]
		if ps == nil {
			continue
		}
		p := mapPeer(ps)
		out.Peers = append(out.Peers, p)
		if p.Online {
			out.OnlinePeers++
		}
		if p.ExitNode {
			out.ExitNode = p.HostName
		}
	}
	return out
}

func mapPeer(ps *ipnstate.PeerStatus) Peer {
	p := Peer{
		HostName: ps.HostName,
		DNSName:  ps.DNSName,
		Online:   ps.Online,
		ExitNode: ps.ExitNode,
	}
	for _, addr := range ps.TailscaleIPs {
		p.IPs = append(p.IPs, addr.String())
	}
	return p
}

// Package privacy is a push-based read-only service reporting whether a
// capture device (usually a webcam) is in use. The initial state comes
// from scanning open file descriptors under /proc; changes come from
// inotify open/close notifications on the device node.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RAprogramm/hydebar-sub001/pkg/listener"
	"github.com/RAprogramm/hydebar-sub001/pkg/service"
)

// DefaultDevice is the device watched when none is configured.
const DefaultDevice = "/dev/video0"

// DefaultRetryDelay is the pause before re-arming a failed watch, e.g.
// after the device is unplugged.
const DefaultRetryDelay = 2 * time.Second

// Usage is the service state.
type Usage struct {
	Device string
	// Users is the number of processes holding the device open.
	Users int
}

// InUse reports whether any process has the device open.
func (u *Usage) InUse() bool { return u.Users > 0 }

// Change carries the new user count.
type Change struct {
	Users int
}

// Apply implements service.State.
func (u *Usage) Apply(c Change) { u.Users = c.Users }

// Event is the service event type.
type Event = service.Event[*Usage, Change]

// WatchFunc opens a stream that yields one value per batch of access
// notifications on path.
type WatchFunc func(path string) (listener.Stream[uint32], error)

// Service watches one device node.
type Service struct {
	device     string
	procRoot   string
	retryDelay time.Duration
	watch      WatchFunc
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProcRoot overrides the /proc mount used for scanning.
func WithProcRoot(dir string) Option { return func(s *Service) { s.procRoot = dir } }

// WithWatch replaces the platform watcher.
func WithWatch(fn WatchFunc) Option { return func(s *Service) { s.watch = fn } }

// WithRetryDelay sets the pause between watch attempts.
func WithRetryDelay(d time.Duration) Option { return func(s *Service) { s.retryDelay = d } }

// New creates a service for device.
func New(device string, logger *slog.Logger, opts ...Option) *Service {
	if device == "" {
		device = DefaultDevice
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		device:     device,
		procRoot:   "/proc",
		retryDelay: DefaultRetryDelay,
		watch:      watchDevice,
		logger:     logger.With("service", "privacy", "device", device),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe implements service.ReadOnly. Updates are only sent when the
// user count actually changes.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	return service.Start(ctx, 4, func(ctx context.Context, em *service.Emitter[*Usage, Change]) {
		users := CountUsers(s.procRoot, s.device)
		if err := em.Init(&Usage{Device: s.device, Users: users}); err != nil {
			return
		}
		last := users

		_ = listener.Run(ctx, listener.Spec[uint32, Change]{
			Name: "privacy",
			Open: func(context.Context) (listener.Stream[uint32], error) {
				st, err := s.watch(s.device)
				if err != nil {
					_ = em.Error(err)
					return nil, err
				}
				return st, nil
			},
			Convert: func(uint32) (Change, bool) {
				n := CountUsers(s.procRoot, s.device)
				if n == last {
					return Change{}, false
				}
				last = n
				return Change{Users: n}, true
			},
			Publish:    em.Update,
			RetryDelay: s.retryDelay,
			Logger:     s.logger,
		})
	})
}

var _ service.ReadOnly[*Usage, Change] = (*Service)(nil)

// CountUsers returns the number of processes under procRoot with an open
// descriptor resolving to device. Unreadable processes are skipped.
func CountUsers(procRoot, device string) int {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		if holds(filepath.Join(procRoot, e.Name(), "fd"), device) {
			n++
		}
	}
	return n
}

func holds(fdDir, device string) bool {
	fds, err := os.ReadDir(fdDir)
	if err != nil {
		return false
	}
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
		if err == nil && target == device {
			return true
		}
	}
	return false
}

func watchError(path string, err error) error {
	return fmt.Errorf("watch %s: %w", path, err)
}

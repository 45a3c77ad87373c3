// Package sysinfo is a poll-based read-only service reporting CPU, memory,
// swap, temperature, disk, load and network throughput. Samples come from
// gopsutil, which works on Linux and Darwin without parsing /proc by hand.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/RAprogramm/hydebar-sub001/pkg/service"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 5 * time.Second

// Config controls sampling.
type Config struct {
	Interval time.Duration
	// DiskPath is the mount point reported in Snapshot.Disk.
	DiskPath string
}

// Snapshot is one complete sample.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	SwapPercent   float64
	// Temperature is the hottest sensor reading in °C; HasTemperature is
	// false on machines without readable sensors.
	Temperature    float64
	HasTemperature bool
	DiskPath       string
	DiskPercent    float64
	Load1          float64
	// Network throughput in bytes per second since the previous sample.
	DownloadRate float64
	UploadRate   float64
	Timestamp    time.Time
}

// State is the folded service state. Each update replaces the snapshot.
type State struct {
	Snapshot
}

// Apply implements service.State.
func (s *State) Apply(update Snapshot) { s.Snapshot = update }

// Event is the service event type.
type Event = service.Event[*State, Snapshot]

// Sampler takes one sample. The default implementation reads gopsutil.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// Service polls a Sampler on a fixed interval.
type Service struct {
	cfg     Config
	sampler Sampler
	logger  *slog.Logger
}

// New creates a service. A nil sampler uses gopsutil; a nil logger uses
// slog.Default().
func New(cfg Config, sampler Sampler, logger *slog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if sampler == nil {
		sampler = NewSampler(cfg.DiskPath)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, sampler: sampler, logger: logger.With("service", "sysinfo")}
}

// Subscribe implements service.ReadOnly. The first successful sample is
// sent as Init, later ones as Update; failures are sent as Error and
// sampling continues.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	return service.Start(ctx, 1, func(ctx context.Context, em *service.Emitter[*State, Snapshot]) {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			snap, err := s.sampler.Sample(ctx)
			switch {
			case err != nil && snap.Timestamp.IsZero():
				s.logger.Warn("sample failed", "error", err)
				if em.Error(err) != nil {
					return
				}
			case !em.Initialized():
				if err != nil {
					s.logger.Debug("partial sample", "error", err)
				}
				if em.Init(&State{Snapshot: snap}) != nil {
					return
				}
			default:
				if err != nil {
					s.logger.Debug("partial sample", "error", err)
				}
				if em.Update(snap) != nil {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

var _ service.ReadOnly[*State, Snapshot] = (*Service)(nil)

// gopsutilSampler reads host metrics. It keeps the previous network
// counters to turn cumulative byte counts into rates.
type gopsutilSampler struct {
	diskPath string

	mu       sync.Mutex
	prevAt   time.Time
	prevRecv uint64
	prevSent uint64
}

// NewSampler returns the gopsutil-backed Sampler.
func NewSampler(diskPath string) Sampler {
	return &gopsutilSampler{diskPath: diskPath}
}

// Sample gathers every metric it can. Individual failures are aggregated;
// only when nothing could be read is the snapshot left without a
// timestamp.
func (g *gopsutilSampler) Sample(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var s Snapshot
	var errs []string
	steps := []struct {
		name string
		fn   func(context.Context, *Snapshot) error
	}{
		{"cpu", sampleCPU},
		{"memory", sampleMemory},
		{"temperature", sampleTemperature},
		{"disk", g.sampleDisk},
		{"load", sampleLoad},
		{"network", g.sampleNetwork},
	}
	for _, st := range steps {
		if err := st.fn(ctx, &s); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", st.name, err))
		}
	}

	if len(errs) == len(steps) {
		return Snapshot{}, fmt.Errorf("sysinfo: all samplers failed: %s", strings.Join(errs, "; "))
	}
	s.Timestamp = time.Now()
	if len(errs) > 0 {
		return s, fmt.Errorf("sysinfo: partial errors: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

func sampleCPU(ctx context.Context, s *Snapshot) error {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return err
	}
	if len(total) > 0 {
		s.CPUPercent = total[0]
	}
	return nil
}

func sampleMemory(ctx context.Context, s *Snapshot) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	s.MemoryPercent = vm.UsedPercent

	// Swap may not exist; that is not a failure.
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil && sw.Total > 0 {
		s.SwapPercent = sw.UsedPercent
	}
	return nil
}

var errNoSensors = errors.New("no temperature sensors")

func sampleTemperature(ctx context.Context, s *Snapshot) error {
	temps, err := sensors.TemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return err
	}
	for _, t := range temps {
		if t.Temperature <= 0 {
			continue
		}
		if !s.HasTemperature || t.Temperature > s.Temperature {
			s.Temperature = t.Temperature
			s.HasTemperature = true
		}
	}
	if !s.HasTemperature {
		return errNoSensors
	}
	return nil
}

func (g *gopsutilSampler) sampleDisk(ctx context.Context, s *Snapshot) error {
	usage, err := disk.UsageWithContext(ctx, g.diskPath)
	if err != nil {
		return err
	}
	s.DiskPath = usage.Path
	s.DiskPercent = usage.UsedPercent
	return nil
}

func sampleLoad(ctx context.Context, s *Snapshot) error {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return err
	}
	s.Load1 = avg.Load1
	return nil
}

func (g *gopsutilSampler) sampleNetwork(ctx context.Context, s *Snapshot) error {
	counters, err := gnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return err
	}
	if len(counters) == 0 {
		return errors.New("no interfaces")
	}
	now := time.Now()
	recv, sent := counters[0].BytesRecv, counters[0].BytesSent

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.prevAt.IsZero() {
		s.DownloadRate, s.UploadRate = rates(g.prevRecv, g.prevSent, recv, sent, now.Sub(g.prevAt))
	}
	g.prevAt, g.prevRecv, g.prevSent = now, recv, sent
	return nil
}

// rates converts counter deltas over elapsed into bytes per second. A
// counter that went backwards (interface reset) yields zero.
func rates(prevRecv, prevSent, recv, sent uint64, elapsed time.Duration) (down, up float64) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, 0
	}
	if recv >= prevRecv {
		down = float64(recv-prevRecv) / secs
	}
	if sent >= prevSent {
		up = float64(sent-prevSent) / secs
	}
	return down, up
}

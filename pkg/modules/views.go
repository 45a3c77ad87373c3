package modules

import (
	"fmt"
	"math"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/RAprogramm/hydebar-sub001/pkg/services/kube"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/privacy"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/sysinfo"
	"github.com/RAprogramm/hydebar-sub001/pkg/services/tailnet"
)

// Thresholds holds warn/alert percentages for the system info readings.
type Thresholds struct {
	CPUWarn, CPUAlert       int
	MemoryWarn, MemoryAlert int
	TempWarn, TempAlert     int
	DiskWarn, DiskAlert     int
}

// SystemInfoView renders system metrics, marking readings above their
// warn threshold with "!" and above alert with "!!".
func SystemInfoView(t Thresholds) ServiceView[*sysinfo.State] {
	mark := func(v float64, warn, alert int) string {
		switch sysinfo.Classify(v, warn, alert) {
		case sysinfo.LevelAlert:
			return "!!"
		case sysinfo.LevelWarn:
			return "!"
		}
		return ""
	}
	return ServiceView[*sysinfo.State]{
		Render: func(s *sysinfo.State) string {
			parts := []string{
				fmt.Sprintf("cpu %.0f%%%s", s.CPUPercent, mark(s.CPUPercent, t.CPUWarn, t.CPUAlert)),
				fmt.Sprintf("mem %.0f%%%s", s.MemoryPercent, mark(s.MemoryPercent, t.MemoryWarn, t.MemoryAlert)),
			}
			if s.HasTemperature {
				parts = append(parts, fmt.Sprintf("%.0f°C%s", s.Temperature, mark(s.Temperature, t.TempWarn, t.TempAlert)))
			}
			return strings.Join(parts, " ")
		},
		Detail: func(s *sysinfo.State) string {
			var b strings.Builder
			fmt.Fprintf(&b, "CPU     %5.1f%%   load %.2f\n", s.CPUPercent, s.Load1)
			fmt.Fprintf(&b, "Memory  %5.1f%%   swap %.1f%%\n", s.MemoryPercent, s.SwapPercent)
			fmt.Fprintf(&b, "Disk    %5.1f%%   %s\n", s.DiskPercent, s.DiskPath)
			fmt.Fprintf(&b, "Net     ↓%sB/s ↑%sB/s", formatSI(s.DownloadRate), formatSI(s.UploadRate))
			return b.String()
		},
		Urgent: func(s *sysinfo.State) bool {
			return sysinfo.Classify(s.CPUPercent, t.CPUWarn, t.CPUAlert) == sysinfo.LevelAlert ||
				sysinfo.Classify(s.MemoryPercent, t.MemoryWarn, t.MemoryAlert) == sysinfo.LevelAlert ||
				sysinfo.Classify(s.DiskPercent, t.DiskWarn, t.DiskAlert) == sysinfo.LevelAlert ||
				(s.HasTemperature && sysinfo.Classify(s.Temperature, t.TempWarn, t.TempAlert) == sysinfo.LevelAlert)
		},
	}
}

// NetworkView renders the tailnet status.
func NetworkView() ServiceView[*tailnet.Status] {
	return ServiceView[*tailnet.Status]{
		Render: func(s *tailnet.Status) string {
			if !s.Running() {
				return "ts " + strings.ToLower(s.BackendState)
			}
			out := fmt.Sprintf("ts %d/%d", s.OnlinePeers, len(s.Peers))
			if s.ExitNode != "" {
				out += " via " + s.ExitNode
			}
			return out
		},
		Detail: func(s *tailnet.Status) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Tailnet %s (%s)\n", s.TailnetName, s.BackendState)
			fmt.Fprintf(&b, "Self    %s %s", s.Self.HostName, strings.Join(s.Self.IPs, ","))
			for _, p := range s.Peers {
				state := "offline"
				if p.Online {
					state = "online"
				}
				fmt.Fprintf(&b, "\n  %-20s %s", p.HostName, state)
			}
			if s.LastMessage != "" {
				fmt.Fprintf(&b, "\n%s", s.LastMessage)
			}
			return b.String()
		},
		Urgent: func(s *tailnet.Status) bool { return s.LastMessage != "" && !s.Running() },
	}
}

// KubeView renders running/total pods and flags failed pods.
func KubeView() ServiceView[*kube.Pods] {
	return ServiceView[*kube.Pods]{
		Render: func(p *kube.Pods) string {
			counts := p.Counts()
			out := fmt.Sprintf("k8s %d/%d", counts[corev1.PodRunning], len(p.Phases))
			if n := counts[corev1.PodFailed]; n > 0 {
				out += fmt.Sprintf(" %d failed", n)
			}
			return out
		},
		Detail: func(p *kube.Pods) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Pods in %s", p.Namespace)
			for _, name := range p.Names() {
				fmt.Fprintf(&b, "\n  %-32s %s", name, p.Phases[name])
			}
			return b.String()
		},
		Urgent: func(p *kube.Pods) bool { return p.Counts()[corev1.PodFailed] > 0 },
	}
}

// PrivacyView shows an indicator only while the device is in use.
func PrivacyView() ServiceView[*privacy.Usage] {
	return ServiceView[*privacy.Usage]{
		Render: func(u *privacy.Usage) string {
			if !u.InUse() {
				return ""
			}
			return "● cam"
		},
		Detail: func(u *privacy.Usage) string {
			if !u.InUse() {
				return ""
			}
			return fmt.Sprintf("%s in use by %d process(es)", u.Device, u.Users)
		},
		Urgent: func(u *privacy.Usage) bool { return u.InUse() },
	}
}

// formatSI formats a value with K/M/G/T suffixes: 1500 -> "1.5K".
func formatSI(v float64) string {
	abs := math.Abs(v)
	prefix := ""
	if v < 0 {
		prefix = "-"
	}
	switch {
	case abs >= 1e12:
		return prefix + formatSIValue(abs/1e12) + "T"
	case abs >= 1e9:
		return prefix + formatSIValue(abs/1e9) + "G"
	case abs >= 1e6:
		return prefix + formatSIValue(abs/1e6) + "M"
	case abs >= 1e3:
		return prefix + formatSIValue(abs/1e3) + "K"
	}
	return prefix + fmt.Sprintf("%d", int(abs))
}

func formatSIValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

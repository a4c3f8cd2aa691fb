package supervisor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// SafetyThresholds gates startup and periodic health checks. The floors
// mirror the teacher's diagnostics.ResourceMonitor thresholds, generalized
// from process-local FD/goroutine counts to host-level disk and memory.
type SafetyThresholds struct {
	MinDiskFreePercent float64
	MaxMemoryPercent   float64
	MaxGoroutines      int
}

// DefaultSafetyThresholds matches SPEC_FULL's startup preflight: refuse to
// start below 5% free disk, and warn once host memory utilisation or
// goroutine count run away.
func DefaultSafetyThresholds() SafetyThresholds {
	return SafetyThresholds{
		MinDiskFreePercent: 5.0,
		MaxMemoryPercent:   90.0,
		MaxGoroutines:      5000,
	}
}

// HealthWarning is a single threshold breach surfaced by a safety check.
type HealthWarning struct {
	Check   string
	Message string
}

// Preflight runs once at startup and fails fast when the host cannot safely
// run a roadmap: out of disk, or already starved of memory.
func Preflight(path string, t SafetyThresholds) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("safety preflight: disk usage for %s: %w", path, err)
	}
	freePercent := 100 - usage.UsedPercent
	if freePercent < t.MinDiskFreePercent {
		return fmt.Errorf("safety preflight: %.1f%% disk free at %s, below the %.1f%% floor", freePercent, path, t.MinDiskFreePercent)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("safety preflight: memory stats: %w", err)
	}
	if vm.UsedPercent >= t.MaxMemoryPercent {
		return fmt.Errorf("safety preflight: %.1f%% memory in use, at or above the %.1f%% ceiling", vm.UsedPercent, t.MaxMemoryPercent)
	}
	return nil
}

// CheckHealth runs the same checks Preflight does, but returns warnings
// instead of failing, for use on the periodic safety monitor tick.
func CheckHealth(path string, t SafetyThresholds) []HealthWarning {
	var warnings []HealthWarning

	if usage, err := disk.Usage(path); err == nil {
		if freePercent := 100 - usage.UsedPercent; freePercent < t.MinDiskFreePercent {
			warnings = append(warnings, HealthWarning{
				Check:   "disk",
				Message: fmt.Sprintf("%.1f%% disk free at %s, below the %.1f%% floor", freePercent, path, t.MinDiskFreePercent),
			})
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		if vm.UsedPercent >= t.MaxMemoryPercent {
			warnings = append(warnings, HealthWarning{
				Check:   "memory",
				Message: fmt.Sprintf("%.1f%% memory in use, at or above the %.1f%% ceiling", vm.UsedPercent, t.MaxMemoryPercent),
			})
		}
	}

	if n := runtime.NumGoroutine(); n >= t.MaxGoroutines {
		warnings = append(warnings, HealthWarning{
			Check:   "goroutines",
			Message: fmt.Sprintf("%d goroutines running, at or above the %d ceiling", n, t.MaxGoroutines),
		})
	}

	return warnings
}

// safetyMonitor runs CheckHealth on its own ticker, independent of the
// heartbeat and the main dispatch loop, and records breaches to the audit
// trail so an operator tailing it sees degradation before the run stalls.
type safetyMonitor struct {
	path      string
	thresholds SafetyThresholds
	interval  time.Duration
	audit     core.AuditRecorder
	roadmapID core.RoadmapID
}

func newSafetyMonitor(path string, t SafetyThresholds, interval time.Duration, audit core.AuditRecorder, roadmapID core.RoadmapID) *safetyMonitor {
	return &safetyMonitor{path: path, thresholds: t, interval: interval, audit: audit, roadmapID: roadmapID}
}

func (m *safetyMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, w := range CheckHealth(m.path, m.thresholds) {
				m.record(ctx, w)
			}
		}
	}
}

func (m *safetyMonitor) record(ctx context.Context, w HealthWarning) {
	if m.audit == nil {
		return
	}
	event := core.NewAuditEvent(core.AuditKindMaintenanceSignal, w.Message).
		WithRoadmap(m.roadmapID).
		WithDetail("check", w.Check)
	_, _ = m.audit.AppendAudit(ctx, event)
}

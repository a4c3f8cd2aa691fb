// Package ops implements the Operations Manager: a rolling-window
// aggregator over execution outcomes that selects an operating mode and
// tunes the Scheduler's priority profile, plus the maintenance signals
// (blocked_tasks, underutilised) that alert an operator without gating
// execution on them.
package ops

import (
	"sync"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Outcome is one completed execution's observed result, the unit the
// rolling window aggregates over.
type Outcome struct {
	Quality  float64 // [0,1]
	Success  bool
	Duration time.Duration
	Agent    string
	Model    string
	RateLimited bool
	Timestamp time.Time
}

// Mode is the Operations Manager's current operating posture.
type Mode string

const (
	ModeBalance    Mode = "balance"
	ModeStabilize  Mode = "stabilize"
	ModeAccelerate Mode = "accelerate"
)

// Thresholds calibrate the mode-selection heuristic (spec.md §4.9).
type Thresholds struct {
	StabilizeQualityFloor    float64
	StabilizeFailureCeiling  float64
	StabilizeRateLimitCeiling int
	AccelerateQualityFloor   float64
	AccelerateFailureCeiling float64
	AccelerateUsageRatioTarget float64
}

// DefaultThresholds matches spec.md §4.9's stated numbers exactly.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StabilizeQualityFloor:      0.85,
		StabilizeFailureCeiling:    0.2,
		StabilizeRateLimitCeiling:  3,
		AccelerateQualityFloor:     0.9,
		AccelerateFailureCeiling:   0.1,
		AccelerateUsageRatioTarget: 0.5,
	}
}

// Window is a fixed-capacity ring buffer of recent outcomes.
type Window struct {
	mu       sync.RWMutex
	size     int
	outcomes []Outcome
}

// NewWindow creates a window of the given capacity (spec.md default 50).
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 50
	}
	return &Window{size: size, outcomes: make([]Outcome, 0, size)}
}

// Record appends an outcome, evicting the oldest entry once the window
// is full.
func (w *Window) Record(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes = append(w.outcomes, o)
	if len(w.outcomes) > w.size {
		w.outcomes = w.outcomes[len(w.outcomes)-w.size:]
	}
}

// Snapshot returns a copy of the current window contents.
func (w *Window) Snapshot() []Outcome {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Outcome, len(w.outcomes))
	copy(out, w.outcomes)
	return out
}

// Stats is the window's current aggregate signal set.
type Stats struct {
	Count            int
	AvgQuality       float64
	FailureRate      float64
	RecentRateLimits int
	PrimaryUsageRatio float64
}

// Compute aggregates the window's current contents. PrimaryUsageRatio is
// the fraction of outcomes whose Agent matches primaryAgent, standing in
// for spec.md's "primary/backup usage ratio".
func (w *Window) Compute(primaryAgent string) Stats {
	outcomes := w.Snapshot()
	if len(outcomes) == 0 {
		return Stats{}
	}

	var totalQuality float64
	var failures, rateLimits, primary int
	for _, o := range outcomes {
		totalQuality += o.Quality
		if !o.Success {
			failures++
		}
		if o.RateLimited {
			rateLimits++
		}
		if o.Agent == primaryAgent {
			primary++
		}
	}

	stats := Stats{
		Count:            len(outcomes),
		AvgQuality:       totalQuality / float64(len(outcomes)),
		FailureRate:      float64(failures) / float64(len(outcomes)),
		RecentRateLimits: rateLimits,
	}
	if primaryAgent != "" {
		stats.PrimaryUsageRatio = float64(primary) / float64(len(outcomes))
	}
	return stats
}

// SelectMode applies spec.md §4.9's heuristic, in its stated priority
// order: stabilize conditions are checked first so a simultaneously
// accelerate-eligible but also-struggling window never accelerates.
func SelectMode(stats Stats, t Thresholds) Mode {
	if stats.AvgQuality < t.StabilizeQualityFloor ||
		stats.FailureRate > t.StabilizeFailureCeiling ||
		stats.RecentRateLimits > t.StabilizeRateLimitCeiling {
		return ModeStabilize
	}
	if stats.AvgQuality >= t.AccelerateQualityFloor &&
		stats.FailureRate < t.AccelerateFailureCeiling &&
		stats.PrimaryUsageRatio >= t.AccelerateUsageRatioTarget {
		return ModeAccelerate
	}
	return ModeBalance
}

// PhaseToOutcome reduces a completed phase's status into the Quality/
// Success pair Compute aggregates over. Callers that already have a
// quality-graph vector (internal/gate) should average its dimensions
// rather than calling this.
func PhaseToOutcome(status core.TaskStatus, avgDimensionScore float64, d time.Duration, agent, model string, rateLimited bool) Outcome {
	return Outcome{
		Quality:     avgDimensionScore,
		Success:     status == core.TaskStatusDone || status == core.TaskStatusNeedsReview,
		Duration:    d,
		Agent:       agent,
		Model:       model,
		RateLimited: rateLimited,
	}
}

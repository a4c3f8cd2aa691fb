package ops

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/scheduler"
)

// ProfileSetter is the narrow slice of *scheduler.Scheduler the
// Operations Manager needs: swapping the active priority profile in
// response to a mode change. Accepting the interface rather than the
// concrete type keeps this package testable without constructing a real
// DAG-backed Scheduler.
type ProfileSetter interface {
	SetPriorityProfile(scheduler.PriorityProfile)
}

// ModeProfiles maps each operating mode to the priority profile the
// Scheduler should run under while that mode holds.
type ModeProfiles map[Mode]scheduler.PriorityProfile

// DefaultModeProfiles derives stabilize/accelerate variants from the
// Scheduler's own default by adjusting the staleness and complexity
// biases: stabilize leans harder on staleness (surface starved tasks
// before anything else), accelerate leans harder on complexity
// (front-load the costlier work while headroom exists).
func DefaultModeProfiles() ModeProfiles {
	base := scheduler.DefaultPriorityProfile()

	stabilize := base
	stabilize.StalenessBias = base.StalenessBias * 3

	accelerate := base
	accelerate.ComplexityBias = base.ComplexityBias * 1.5

	return ModeProfiles{
		ModeBalance:    base,
		ModeStabilize:  stabilize,
		ModeAccelerate: accelerate,
	}
}

// Manager is the Operations Manager (C9): it aggregates outcomes,
// selects a mode, swaps the Scheduler's priority profile on mode change,
// and raises rate-limited maintenance signals.
type Manager struct {
	window     *Window
	thresholds Thresholds
	profiles   ModeProfiles
	scheduler  ProfileSetter
	audit      core.AuditRecorder
	logger     *slog.Logger
	gate       *signalGate

	primaryAgent string
	mode         Mode
}

// Option configures a Manager.
type Option func(*Manager)

func WithWindowSize(n int) Option {
	return func(m *Manager) { m.window = NewWindow(n) }
}

func WithThresholds(t Thresholds) Option {
	return func(m *Manager) { m.thresholds = t }
}

func WithModeProfiles(p ModeProfiles) Option {
	return func(m *Manager) { m.profiles = p }
}

func WithScheduler(s ProfileSetter) Option {
	return func(m *Manager) { m.scheduler = s }
}

func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(m *Manager) { m.audit = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithPrimaryAgent(name string) Option {
	return func(m *Manager) { m.primaryAgent = name }
}

// WithClock overrides the signal gate's clock, for deterministic tests
// of the 5-minute rate-limit cooldown.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.gate = newSignalGate(now) }
}

// New constructs a Manager in ModeBalance.
func New(opts ...Option) *Manager {
	m := &Manager{
		window:     NewWindow(50),
		thresholds: DefaultThresholds(),
		profiles:   DefaultModeProfiles(),
		logger:     slog.Default(),
		gate:       newSignalGate(nil),
		mode:       ModeBalance,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode returns the Manager's current operating mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// Stats returns the current window's aggregate signal set.
func (m *Manager) Stats() Stats {
	return m.window.Compute(m.primaryAgent)
}

// RecordOutcome appends a completed execution's outcome to the rolling
// window and re-evaluates mode, swapping the Scheduler's priority
// profile and emitting profile_updated when mode changes.
func (m *Manager) RecordOutcome(ctx context.Context, o Outcome) {
	m.window.Record(o)
	m.reevaluateMode(ctx)
}

func (m *Manager) reevaluateMode(ctx context.Context) {
	stats := m.window.Compute(m.primaryAgent)
	next := SelectMode(stats, m.thresholds)
	if next == m.mode {
		return
	}
	prev := m.mode
	m.mode = next

	if m.scheduler != nil {
		if profile, ok := m.profiles[next]; ok {
			m.scheduler.SetPriorityProfile(profile)
		}
	}

	if m.logger != nil {
		m.logger.Info("operations mode changed",
			"from", prev, "to", next,
			"avg_quality", stats.AvgQuality,
			"failure_rate", stats.FailureRate,
			"recent_rate_limits", stats.RecentRateLimits,
		)
	}

	m.record(ctx, core.AuditKindProfileUpdated, "profile:updated", map[string]string{
		"from_mode": string(prev),
		"to_mode":   string(next),
	})
}

// EvaluateSignals checks the current queue state against the
// maintenance-signal conditions and raises any whose cooldown has
// elapsed. Safe to call on every Supervisor tick.
func (m *Manager) EvaluateSignals(ctx context.Context, q QueueState) []SignalKind {
	fired := evaluateSignals(m.gate, q)
	for _, kind := range fired {
		if m.logger != nil {
			m.logger.Warn("maintenance signal", "signal", kind,
				"blocked_tasks", q.BlockedTasks, "total_tasks", q.TotalTasks,
				"ready_queue_len", q.ReadyQueueLen, "available_agents", q.AvailableAgents,
			)
		}
		m.record(ctx, core.AuditKindMaintenanceSignal, string(kind), map[string]string{
			"blocked_tasks":    strconv.Itoa(q.BlockedTasks),
			"total_tasks":      strconv.Itoa(q.TotalTasks),
			"ready_queue_len":  strconv.Itoa(q.ReadyQueueLen),
			"available_agents": strconv.Itoa(q.AvailableAgents),
		})
	}
	return fired
}

func (m *Manager) record(ctx context.Context, kind, message string, detail map[string]string) {
	if m.audit == nil {
		return
	}
	event := core.NewAuditEvent(kind, message)
	for k, v := range detail {
		event = event.WithDetail(k, v)
	}
	_, _ = m.audit.AppendAudit(ctx, event)
}


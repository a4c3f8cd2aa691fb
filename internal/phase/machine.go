// Package phase drives a single Task through the ordered phase lifecycle
// (STRATEGIZE ... MONITOR, with GATE conditionally inserted) and the task
// status transitions that accompany it. It does not itself run critics or
// the quality gate's bypass-pattern catalogue — it is the thing that acts
// on their verdicts, the way core.Task's own Mark* methods already act on
// a single status change.
package phase

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
)

// Machine advances tasks through the phase lifecycle, recording every
// transition to the audit stream.
type Machine struct {
	audit core.AuditRecorder
}

// Option configures a Machine.
type Option func(*Machine)

// WithAuditRecorder attaches an audit sink. Without one, transitions are
// still applied but nothing is recorded.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(m *Machine) { m.audit = a }
}

// New creates a Machine.
func New(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves a task from pending (or blocked/needs_improvement, on
// retry) into in_progress. The caller is responsible for having reserved
// a WIP slot first.
func (m *Machine) Start(ctx context.Context, task *core.Task) error {
	from := task.Status
	if err := task.MarkInProgress(); err != nil {
		return err
	}
	m.record(ctx, task, "start", map[string]string{"from_status": string(from)})
	return nil
}

// Advance applies a critic verdict at the boundary of the task's current
// phase. A passing verdict moves the task to the next phase in sequence,
// inserting GATE after THINK when filesChanged/netLOC cross the gate
// threshold. A failing verdict enters the remediation path: either
// needs_improvement (if the phase's retry ceiling has room) or blocked
// (if it has been exhausted).
func (m *Machine) Advance(ctx context.Context, task *core.Task, verdict critic.Verdict, filesChanged, netLOC int) error {
	if task.Phase == core.PhaseMonitor {
		return fmt.Errorf("phase: task %s is already at the terminal phase", task.ID)
	}

	if !verdict.Admit {
		return m.remediate(ctx, task, verdict)
	}

	if task.Phase == core.PhaseThink {
		task.GateRequired = core.RequiresGate(filesChanged, netLOC)
	}

	next := core.NextPhase(task.Phase, task.GateRequired)
	if next == "" {
		return fmt.Errorf("phase: no successor phase for %s", task.Phase)
	}

	from := task.Phase
	task.Phase = next
	task.RecordAttempt(next)

	m.record(ctx, task, "advance", map[string]string{
		"from_phase": string(from),
		"to_phase":   string(next),
	})
	return nil
}

// CompleteReview resolves the REVIEW phase boundary: a passing verdict
// moves the task to needs_review (awaiting PR/MONITOR and final
// done-enforcement); a failing verdict enters remediation.
func (m *Machine) CompleteReview(ctx context.Context, task *core.Task, verdict critic.Verdict) error {
	if task.Phase != core.PhaseReview {
		return fmt.Errorf("phase: CompleteReview called outside the review phase (task is at %s)", task.Phase)
	}
	if !verdict.Admit {
		return m.remediate(ctx, task, verdict)
	}
	if err := task.MarkNeedsReview(); err != nil {
		return err
	}
	m.record(ctx, task, "review_passed", nil)
	return nil
}

// remediate implements the needs_improvement / blocked fork on a failing
// verdict: retry ceiling breach blocks the task, otherwise it is marked
// needs_improvement so the scheduler re-queues it for remediation.
func (m *Machine) remediate(ctx context.Context, task *core.Task, verdict critic.Verdict) error {
	reason := summarizeFailure(verdict)
	attempts := task.AttemptsForPhase(task.Phase)

	if attempts >= task.MaxRetries {
		if err := task.MarkBlocked(fmt.Sprintf("retry ceiling (%d) exceeded at phase %s: %s", task.MaxRetries, task.Phase, reason)); err != nil {
			return err
		}
		m.record(ctx, task, "blocked", map[string]string{"phase": string(task.Phase), "reason": reason})
		return nil
	}

	if err := task.MarkNeedsImprovement(reason); err != nil {
		return err
	}
	m.record(ctx, task, "needs_improvement", map[string]string{"phase": string(task.Phase), "reason": reason})
	return nil
}

// Retry re-enters a needs_improvement task at the given phase — the
// earliest phase whose artifact the caller has determined is missing or
// stale. It increments the retry counter and the phase's attempt count.
func (m *Machine) Retry(ctx context.Context, task *core.Task, at core.Phase) error {
	if !task.CanRetry() {
		return fmt.Errorf("phase: task %s cannot retry (status=%s retries=%d/%d)", task.ID, task.Status, task.Retries, task.MaxRetries)
	}
	from := task.Phase
	task.Phase = at
	task.RecordAttempt(at)
	if err := task.Reset(); err != nil {
		return err
	}
	m.record(ctx, task, "retry", map[string]string{
		"from_phase": string(from),
		"to_phase":   string(at),
	})
	return nil
}

// Block moves an in-flight task to blocked on an unrecoverable external
// condition (rate-limit exceeding threshold, dependency failure, missing
// required input).
func (m *Machine) Block(ctx context.Context, task *core.Task, reason string) error {
	if err := task.MarkBlocked(reason); err != nil {
		return err
	}
	m.record(ctx, task, "blocked", map[string]string{"phase": string(task.Phase), "reason": reason})
	return nil
}

// Unblock clears a blocked task once the external condition has cleared.
func (m *Machine) Unblock(ctx context.Context, task *core.Task) error {
	if err := task.Unblock(); err != nil {
		return err
	}
	m.record(ctx, task, "unblocked", map[string]string{"phase": string(task.Phase)})
	return nil
}

// Finish marks a task done. It requires the task be at MONITOR, status
// needs_review (set by CompleteReview and never altered since — MONITOR
// artifacts being the last thing produced), and a passing verdict over
// MONITOR's own critics plus the roadmap-done enforcement the caller
// applied to produce that verdict.
func (m *Machine) Finish(ctx context.Context, task *core.Task, verdict critic.Verdict, outputs []core.Artifact) error {
	if task.Phase != core.PhaseMonitor {
		return fmt.Errorf("phase: Finish called before task %s reached MONITOR (at %s)", task.ID, task.Phase)
	}
	if !verdict.Admit {
		return m.remediate(ctx, task, verdict)
	}
	if err := task.MarkDone(outputs); err != nil {
		return err
	}
	m.record(ctx, task, "done", nil)
	return nil
}

// Cancel moves a task to cancelled from any non-terminal state.
func (m *Machine) Cancel(ctx context.Context, task *core.Task, reason string) error {
	if err := task.MarkCancelled(reason); err != nil {
		return err
	}
	m.record(ctx, task, "cancelled", map[string]string{"reason": reason})
	return nil
}

func (m *Machine) record(ctx context.Context, task *core.Task, message string, detail map[string]string) {
	if m.audit == nil {
		return
	}
	event := core.NewAuditEvent(core.AuditKindPhaseTransition, message).WithTask(task.ID, task.Phase)
	for k, v := range detail {
		event = event.WithDetail(k, v)
	}
	// Best-effort: a failure to record audit history must not unwind an
	// already-applied state transition.
	_, _ = m.audit.AppendAudit(ctx, event)
}

func summarizeFailure(v critic.Verdict) string {
	for _, r := range v.Reports {
		if r.Status == critic.StatusFail {
			return fmt.Sprintf("%s: %s", r.Critic, firstMessage(r))
		}
	}
	return "blocking critic failed"
}

func firstMessage(r critic.Report) string {
	for _, f := range r.Findings {
		if f.Severity == critic.SeverityBlocking {
			return f.Message
		}
	}
	if len(r.Findings) > 0 {
		return r.Findings[0].Message
	}
	return "no finding detail"
}

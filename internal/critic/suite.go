package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Suite runs every applicable critic for a phase boundary and combines
// their reports into a single transition verdict.
type Suite struct {
	critics []Critic
	audit   core.AuditRecorder
}

// Option configures a Suite at construction.
type Option func(*Suite)

// WithAuditRecorder wires the Evidence & Audit Store so every critic
// report is recorded.
func WithAuditRecorder(rec core.AuditRecorder) Option {
	return func(s *Suite) { s.audit = rec }
}

// WithCritics appends additional critics beyond the standard set, e.g. a
// project-specific one.
func WithCritics(critics ...Critic) Option {
	return func(s *Suite) { s.critics = append(s.critics, critics...) }
}

// NewSuite constructs a Suite with the standard critic set: structural
// proof, LOC enforcement, test runner, linter, type checker, security
// audit, reasoning validator, process critic, and peer-review critic.
func NewSuite(opts ...Option) *Suite {
	s := &Suite{
		critics: []Critic{
			NewProcessCritic(),
			NewStructuralCritic(),
			NewLOCCritic(),
			NewTestRunnerCritic(),
			NewLinterCritic(),
			NewTypeCheckCritic(),
			NewSecurityCritic(),
			NewReasoningValidator(),
			NewPeerReviewCritic(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verdict is the combined outcome of running every applicable critic for
// a phase boundary.
type Verdict struct {
	Admit   bool
	Reports []Report
}

// Run executes every critic applicable to evidence.Phase and combines
// their reports: any blocking critic reporting fail vetoes the
// transition (Admit=false); warnings never block but are still recorded.
// Each report is persisted through the audit recorder, when one is
// wired in, as AuditKindCriticReport.
func (s *Suite) Run(ctx context.Context, evidence Evidence) (Verdict, error) {
	verdict := Verdict{Admit: true}

	for _, c := range s.critics {
		if !AppliesTo(c, evidence.Phase) {
			continue
		}

		report, err := c.Run(ctx, evidence)
		if err != nil {
			return Verdict{}, fmt.Errorf("running critic %s: %w", c.Name(), err)
		}

		verdict.Reports = append(verdict.Reports, report)
		s.recordReport(ctx, evidence, c, report)

		if report.Status == StatusFail && c.Severity() == SeverityBlocking && c.Authority() {
			verdict.Admit = false
		}
	}

	return verdict, nil
}

func (s *Suite) recordReport(ctx context.Context, evidence Evidence, c Critic, report Report) {
	if s.audit == nil {
		return
	}
	event := core.NewAuditEvent(core.AuditKindCriticReport, fmt.Sprintf("%s reported %s", c.Name(), report.Status)).
		WithTask(evidence.Task.ID, evidence.Phase).
		WithDetail("critic", c.Name()).
		WithDetail("status", string(report.Status)).
		WithDetail("findings", fmt.Sprintf("%d", len(report.Findings)))
	_, _ = s.audit.AppendAudit(ctx, event)
}

package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// SecurityCritic runs a vulnerability scan (govulncheck by default)
// against the task's worktree. Blocking: a task flagged security-sensitive
// (core.Task.ComplexityFactors["security"]) that introduces a known
// vulnerability must not pass REVIEW.
type SecurityCritic struct {
	Command []string
}

// NewSecurityCritic returns a SecurityCritic invoking `govulncheck ./...`.
func NewSecurityCritic() *SecurityCritic {
	return &SecurityCritic{Command: []string{"govulncheck", "./..."}}
}

func (c *SecurityCritic) Name() string { return "security_audit" }

func (c *SecurityCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseVerify, core.PhaseReview}
}

func (c *SecurityCritic) Severity() Severity { return SeverityBlocking }
func (c *SecurityCritic) Authority() bool     { return true }
func (c *SecurityCritic) Deterministic() bool { return true }

func (c *SecurityCritic) Run(ctx context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: "no known vulnerabilities reachable from changed code"}

	if evidence.WorkDir == "" {
		return report, nil
	}

	result, err := runCommand(ctx, evidence.WorkDir, c.Command[0], c.Command[1:]...)
	if err != nil {
		return Report{}, fmt.Errorf("running security audit: %w", err)
	}
	if result.ExitCode != 0 {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "vulnerability",
			Message:       truncate(result.Stdout, 4000),
			FixSuggestion: "upgrade or remove the vulnerable dependency/code path",
		})
	}
	return report, nil
}

package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// LinterCritic runs a configured lint command (golangci-lint by default)
// against the task's worktree.
type LinterCritic struct {
	Command []string
}

// NewLinterCritic returns a LinterCritic invoking `golangci-lint run`.
func NewLinterCritic() *LinterCritic {
	return &LinterCritic{Command: []string{"golangci-lint", "run", "./..."}}
}

func (c *LinterCritic) Name() string { return "linter" }

func (c *LinterCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseVerify}
}

func (c *LinterCritic) Severity() Severity { return SeverityWarning }
func (c *LinterCritic) Authority() bool     { return false }
func (c *LinterCritic) Deterministic() bool { return true }

func (c *LinterCritic) Run(ctx context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: "lint exits zero"}

	if evidence.WorkDir == "" {
		return report, nil
	}

	result, err := runCommand(ctx, evidence.WorkDir, c.Command[0], c.Command[1:]...)
	if err != nil {
		return Report{}, fmt.Errorf("running linter: %w", err)
	}
	if result.ExitCode != 0 {
		report.Status = StatusWarn
		for _, line := range nonEmptyLines(result.Stdout) {
			report.Findings = append(report.Findings, Finding{
				Severity: SeverityWarning,
				Category: "lint",
				Message:  line,
			})
		}
	}
	return report, nil
}

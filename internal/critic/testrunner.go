package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// TestRunnerCritic runs the project's test suite against a task's
// worktree and fails the phase on any test failure.
type TestRunnerCritic struct {
	// Command is the test invocation, e.g. []string{"go", "test", "./..."}.
	Command []string
}

// NewTestRunnerCritic returns a TestRunnerCritic invoking `go test ./...`.
func NewTestRunnerCritic() *TestRunnerCritic {
	return &TestRunnerCritic{Command: []string{"go", "test", "./..."}}
}

func (c *TestRunnerCritic) Name() string { return "test_runner" }

func (c *TestRunnerCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseVerify}
}

func (c *TestRunnerCritic) Severity() Severity { return SeverityBlocking }
func (c *TestRunnerCritic) Authority() bool     { return true }
func (c *TestRunnerCritic) Deterministic() bool { return true }

func (c *TestRunnerCritic) Run(ctx context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: "test suite exits zero"}

	workDir := evidence.WorkDir
	if workDir == "" {
		report.Status = StatusWarn
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityWarning,
			Category: "test_runner",
			Message:  "task has no worktree to run tests in",
		})
		return report, nil
	}

	result, err := runCommand(ctx, workDir, c.Command[0], c.Command[1:]...)
	if err != nil {
		return Report{}, fmt.Errorf("running tests: %w", err)
	}

	if result.ExitCode != 0 {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "test_failure",
			Message:       truncate(result.Stdout+result.Stderr, 4000),
			FixSuggestion: "fix the failing test(s) before requesting review",
		})
	}
	return report, nil
}

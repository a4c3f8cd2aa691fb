package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// TypeCheckCritic runs the compiler's type check (`go vet`, or a
// language-appropriate equivalent configured per project) without
// producing a binary.
type TypeCheckCritic struct {
	Command []string
}

// NewTypeCheckCritic returns a TypeCheckCritic invoking `go vet ./...`.
func NewTypeCheckCritic() *TypeCheckCritic {
	return &TypeCheckCritic{Command: []string{"go", "vet", "./..."}}
}

func (c *TypeCheckCritic) Name() string { return "type_checker" }

func (c *TypeCheckCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseVerify}
}

func (c *TypeCheckCritic) Severity() Severity { return SeverityBlocking }
func (c *TypeCheckCritic) Authority() bool     { return true }
func (c *TypeCheckCritic) Deterministic() bool { return true }

func (c *TypeCheckCritic) Run(ctx context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: "type check exits zero"}

	if evidence.WorkDir == "" {
		return report, nil
	}

	result, err := runCommand(ctx, evidence.WorkDir, c.Command[0], c.Command[1:]...)
	if err != nil {
		return Report{}, fmt.Errorf("running type checker: %w", err)
	}
	if result.ExitCode != 0 {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "type_error",
			Message:       truncate(result.Stderr, 4000),
			FixSuggestion: "resolve the reported type errors",
		})
	}
	return report, nil
}

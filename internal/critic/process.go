package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// ProcessCritic checks that the artifact a phase is required to produce
// actually exists before the phase is considered complete — a purely
// structural check independent of the artifact's quality.
type ProcessCritic struct{}

func NewProcessCritic() *ProcessCritic { return &ProcessCritic{} }

func (c *ProcessCritic) Name() string { return "process" }

func (c *ProcessCritic) ApplicablePhases() []core.Phase {
	return core.AllPhases()
}

func (c *ProcessCritic) Severity() Severity { return SeverityBlocking }
func (c *ProcessCritic) Authority() bool     { return true }
func (c *ProcessCritic) Deterministic() bool { return true }

func (c *ProcessCritic) Run(_ context.Context, evidence Evidence) (Report, error) {
	want := core.ArtifactTypeForPhase(evidence.Phase)
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: fmt.Sprintf("a %s artifact exists for this task", want)}

	if latestArtifact(evidence.Artifacts, want) == nil {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "artifact_missing",
			Message:       fmt.Sprintf("no %s artifact recorded for phase %s", want, evidence.Phase),
			FixSuggestion: "produce and save the phase's required artifact before advancing",
		})
	}
	return report, nil
}

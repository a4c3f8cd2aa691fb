package critic

import (
	"context"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// StructuralCritic checks that a code change respects file/function size
// and module layout limits, independent of what the change actually
// does. It runs wherever a DiffStat is present: GATE, IMPLEMENT, REVIEW.
type StructuralCritic struct {
	MaxFileLOC     int
	MaxFunctionLOC int
}

// NewStructuralCritic returns a StructuralCritic with the thresholds the
// Quality Gate documents: files capped at 800 lines, functions at 80.
func NewStructuralCritic() *StructuralCritic {
	return &StructuralCritic{MaxFileLOC: 800, MaxFunctionLOC: 80}
}

func (c *StructuralCritic) Name() string { return "structural_proof" }

func (c *StructuralCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseGate, core.PhaseImplement, core.PhaseReview}
}

func (c *StructuralCritic) Severity() Severity { return SeverityBlocking }
func (c *StructuralCritic) Authority() bool     { return true }
func (c *StructuralCritic) Deterministic() bool { return true }

func (c *StructuralCritic) Run(_ context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: "no file or function exceeds the configured size limit"}

	if evidence.DiffStat == nil {
		return report, nil
	}

	d := *evidence.DiffStat
	if d.LargestFileLOC > c.MaxFileLOC {
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "file_size",
			Message:       fileSizeMessage(d),
			FixSuggestion: "split the file along a natural seam (e.g. one type/concern per file)",
		})
	}
	if d.LargestFunctionLOC > c.MaxFunctionLOC {
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "function_size",
			Message:       functionSizeMessage(d),
			FixSuggestion: "extract a helper for the function's distinct sub-steps",
		})
	}

	if len(report.Findings) > 0 {
		report.Status = StatusFail
	}
	return report, nil
}

func fileSizeMessage(d DiffStat) string {
	return d.LargestFile + " exceeds the file size limit"
}

func functionSizeMessage(d DiffStat) string {
	return "largest function in this change exceeds the function size limit"
}

package critic

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// LOCCritic enforces a cap on net lines changed per task, independent of
// the GATE-trigger threshold in core.GateLOCThreshold (which decides
// whether a GATE phase is inserted at all, not whether a change is too
// large to land).
type LOCCritic struct {
	MaxNetLines int
}

// NewLOCCritic returns a LOCCritic capped at 400 net lines, the ceiling
// above which a single task is considered too large to review safely in
// one pass regardless of whether it already went through GATE.
func NewLOCCritic() *LOCCritic {
	return &LOCCritic{MaxNetLines: 400}
}

func (c *LOCCritic) Name() string { return "loc_enforcement" }

func (c *LOCCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseImplement, core.PhaseReview}
}

func (c *LOCCritic) Severity() Severity { return SeverityBlocking }
func (c *LOCCritic) Authority() bool     { return true }
func (c *LOCCritic) Deterministic() bool { return true }

func (c *LOCCritic) Run(_ context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, Deterministic: true, ExitCriteria: fmt.Sprintf("net lines changed <= %d", c.MaxNetLines)}

	if evidence.DiffStat == nil {
		return report, nil
	}

	net := evidence.DiffStat.NetLines()
	if net > c.MaxNetLines {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "loc",
			Message:       fmt.Sprintf("net change of %d lines exceeds the %d-line cap", net, c.MaxNetLines),
			FixSuggestion: "split this task into smaller, independently reviewable changes",
		})
	}
	return report, nil
}

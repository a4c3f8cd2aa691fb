package critic

import (
	"context"
	"strings"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// highComplexityThreshold is the complexity score at or above which a
// pre-mortem is mandatory, per spec.md §4.5.
const highComplexityThreshold = 8.0

// ReasoningValidator checks that a task's THINK-phase evidence is
// complete: risks and assumptions documented, and — for complexity >= 8
// — an explicit pre-mortem present. When multiple agents independently
// produced THINK output, it also scores their agreement with the same
// Jaccard-based consensus math as the peer-review critic, since two
// agents who reasoned about the same task should converge on similar
// risks.
type ReasoningValidator struct {
	Consensus *ConsensusChecker
}

// NewReasoningValidator returns a ReasoningValidator using the standard
// consensus threshold (80% agreement).
func NewReasoningValidator() *ReasoningValidator {
	return &ReasoningValidator{Consensus: NewConsensusChecker(0.80, DefaultWeights())}
}

func (c *ReasoningValidator) Name() string { return "reasoning_validator" }

func (c *ReasoningValidator) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseThink}
}

func (c *ReasoningValidator) Severity() Severity { return SeverityBlocking }
func (c *ReasoningValidator) Authority() bool     { return true }
func (c *ReasoningValidator) Deterministic() bool { return false }

func (c *ReasoningValidator) Run(_ context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Status: StatusPass, ExitCriteria: "risks and assumptions documented; pre-mortem present if complexity >= 8"}

	think := latestArtifact(evidence.Artifacts, core.ArtifactTypeThink)
	if think == nil {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "evidence_missing",
			Message:       "no think artifact found for this task",
			FixSuggestion: "produce a THINK artifact covering risks, assumptions, and edge cases before requesting review",
		})
		return report, nil
	}

	if !strings.Contains(strings.ToLower(think.Content), "risk") {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "incomplete_evidence",
			Message:       "think artifact does not document any risks",
			FixSuggestion: "add a risks section covering what could go wrong",
		})
	}

	if evidence.Task.ComplexityScore >= highComplexityThreshold && !strings.Contains(strings.ToLower(think.Content), "pre-mortem") {
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "premortem_missing",
			Message:       "complexity >= 8 requires an explicit pre-mortem section",
			FixSuggestion: "add a pre-mortem: assume this task failed, and explain the most likely reasons why",
		})
	}

	if len(evidence.PeerOutputs) >= 2 {
		result := c.Consensus.Evaluate(evidence.PeerOutputs)
		if result.NeedsHumanReview {
			report.Status = StatusFail
			report.Findings = append(report.Findings, Finding{
				Severity:      SeverityBlocking,
				Category:      "low_agreement",
				Message:       "independent THINK analyses disagree too strongly to proceed without human review",
				FixSuggestion: "have a human reconcile the divergent risk assessments",
			})
		} else if result.NeedsV3 && report.Status == StatusPass {
			report.Status = StatusWarn
			report.Findings = append(report.Findings, Finding{
				Severity: SeverityWarning,
				Category: "moderate_disagreement",
				Message:  "independent THINK analyses agree below the target threshold",
			})
		}
	}

	return report, nil
}

func latestArtifact(artifacts []*core.Artifact, t core.ArtifactType) *core.Artifact {
	var latest *core.Artifact
	for _, a := range artifacts {
		if a.Type != t {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest
}

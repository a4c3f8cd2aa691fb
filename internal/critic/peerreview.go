package critic

import (
	"context"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// PeerReviewCritic scores 2-of-3 (or pairwise) agent consensus at the
// REVIEW phase boundary, using the same Jaccard-based agreement math as
// the reasoning validator. A score below the human-review threshold
// blocks the transition outright; below the V3 threshold but above
// human-review escalates to a third reviewer rather than blocking.
type PeerReviewCritic struct {
	Consensus *ConsensusChecker
}

// NewPeerReviewCritic returns a PeerReviewCritic using the standard
// thresholds: 80% to pass outright, 60% triggers a third reviewer (V3),
// below 50% requires a human.
func NewPeerReviewCritic() *PeerReviewCritic {
	return &PeerReviewCritic{Consensus: NewConsensusChecker(0.80, DefaultWeights())}
}

func (c *PeerReviewCritic) Name() string { return "peer_review" }

func (c *PeerReviewCritic) ApplicablePhases() []core.Phase {
	return []core.Phase{core.PhaseReview}
}

func (c *PeerReviewCritic) Severity() Severity { return SeverityBlocking }
func (c *PeerReviewCritic) Authority() bool     { return true }
func (c *PeerReviewCritic) Deterministic() bool { return false }

func (c *PeerReviewCritic) Run(_ context.Context, evidence Evidence) (Report, error) {
	report := Report{Critic: c.Name(), Deterministic: false, ExitCriteria: "independent reviewers agree at or above the consensus threshold"}

	if len(evidence.PeerOutputs) < 2 {
		report.Status = StatusWarn
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityWarning,
			Category: "single_reviewer",
			Message:  "only one reviewer ran; peer consensus could not be scored",
		})
		return report, nil
	}

	result := c.Consensus.Evaluate(evidence.PeerOutputs)

	switch {
	case result.NeedsHumanReview:
		report.Status = StatusFail
		report.Findings = append(report.Findings, Finding{
			Severity:      SeverityBlocking,
			Category:      "consensus_below_human_threshold",
			Message:       "reviewer agreement fell below the human-review floor",
			FixSuggestion: "escalate to a human reviewer",
		})
	case result.NeedsV3:
		report.Status = StatusWarn
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityWarning,
			Category: "consensus_needs_third_reviewer",
			Message:  "reviewer agreement below target; a third independent review is recommended",
		})
	default:
		report.Status = StatusPass
	}

	for _, d := range result.Divergences {
		report.Findings = append(report.Findings, Finding{
			Severity: SeverityWarning,
			Category: "divergence_" + d.Category,
			Message:  d.Agent1 + " and " + d.Agent2 + " diverge on " + d.Category,
		})
	}

	return report, nil
}

package router

import "github.com/autopilot-dev/autopilot/internal/core"

// ComplexityWeights tunes how heavily the phase being executed adjusts a
// task's declared complexity score when computing the tier to route at.
// REVIEW and GATE push a task toward a higher tier than its raw score
// alone would justify; STRATEGIZE/PLAN/PR/MONITOR are left unweighted;
// THINK and VERIFY get a small bump since both precede or check a GATE
// decision.
type ComplexityWeights struct {
	PhaseWeight map[core.Phase]float64
}

// DefaultComplexityWeights returns the weighting used when no override is
// configured.
func DefaultComplexityWeights() ComplexityWeights {
	return ComplexityWeights{
		PhaseWeight: map[core.Phase]float64{
			core.PhaseStrategize: 0,
			core.PhaseSpec:       0,
			core.PhasePlan:       0,
			core.PhaseThink:      0.5,
			core.PhaseGate:       1.5,
			core.PhaseImplement:  0,
			core.PhaseVerify:     0.5,
			core.PhaseReview:     1.5,
			core.PhasePR:         0,
			core.PhaseMonitor:    0,
		},
	}
}

// Score computes the effective [0,10] complexity score for routing a
// task's execution of phase, plus the named factors that produced it: the
// task's own declared factors (dependency count, epic membership,
// description length, ml/security/public-api/cross-domain flags — set by
// roadmap ingestion) plus this phase's weight adjustment.
func (w ComplexityWeights) Score(task *core.Task, phase core.Phase) (float64, map[string]float64) {
	factors := make(map[string]float64, len(task.ComplexityFactors)+1)
	for k, v := range task.ComplexityFactors {
		factors[k] = v
	}

	adjustment := w.PhaseWeight[phase]
	factors["phase_weight"] = adjustment

	score := task.ComplexityScore + adjustment
	switch {
	case score < 0:
		score = 0
	case score > 10:
		score = 10
	}
	return score, factors
}

// TierForScore maps a [0,10] complexity score to a routing tier per the
// fixed bucket boundaries: 0-3 simple, 4-6 moderate, 7-9 complex, 10
// critical (routed with extended thinking enabled).
func TierForScore(score float64) core.ComplexityTier {
	switch {
	case score >= 10:
		return core.TierCritical
	case score >= 7:
		return core.TierComplex
	case score >= 4:
		return core.TierModerate
	default:
		return core.TierSimple
	}
}

// EscalateTier returns the next tier up from tier, or "" if tier is
// already the highest. The Router escalates to the next tier when no
// candidate in the current one is eligible.
func EscalateTier(tier core.ComplexityTier) core.ComplexityTier {
	switch tier {
	case core.TierSimple:
		return core.TierModerate
	case core.TierModerate:
		return core.TierComplex
	case core.TierComplex:
		return core.TierCritical
	default:
		return ""
	}
}

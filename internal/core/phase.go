package core

import "fmt"

// Phase represents a stage in a task's execution lifecycle.
type Phase string

const (
	// PhaseStrategize is where the approach and success criteria are framed.
	PhaseStrategize Phase = "strategize"

	// PhaseSpec is where the concrete requirements are written down.
	PhaseSpec Phase = "spec"

	// PhasePlan is where the spec is broken into an ordered set of steps.
	PhasePlan Phase = "plan"

	// PhaseThink is where risks, edge cases and a pre-mortem are produced.
	PhaseThink Phase = "think"

	// PhaseGate is a conditional checkpoint inserted before implementation
	// whenever the planned change is large enough to warrant one.
	PhaseGate Phase = "gate"

	// PhaseImplement is where the change is made.
	PhaseImplement Phase = "implement"

	// PhaseVerify is where tests and critics run against the change.
	PhaseVerify Phase = "verify"

	// PhaseReview is where the change is evaluated for merge-readiness.
	PhaseReview Phase = "review"

	// PhasePR is where the change is published for external integration.
	PhasePR Phase = "pr"

	// PhaseMonitor is the terminal phase observing the change after merge.
	PhaseMonitor Phase = "monitor"
)

// GateLOCThreshold is the net-line-of-change threshold above which GATE
// is mandatory even for single-file changes.
const GateLOCThreshold = 20

// mandatoryOrder is the fixed phase order excluding the conditional GATE.
var mandatoryOrder = []Phase{
	PhaseStrategize,
	PhaseSpec,
	PhasePlan,
	PhaseThink,
	PhaseImplement,
	PhaseVerify,
	PhaseReview,
	PhasePR,
	PhaseMonitor,
}

// AllPhases returns every phase including GATE, in lifecycle order.
func AllPhases() []Phase {
	out := make([]Phase, 0, len(mandatoryOrder)+1)
	for _, p := range mandatoryOrder {
		out = append(out, p)
		if p == PhaseThink {
			out = append(out, PhaseGate)
		}
	}
	return out
}

// PhaseOrder returns the numeric order of a phase within the fixed
// (gate-inclusive) lifecycle, or -1 if unknown.
func PhaseOrder(p Phase) int {
	for i, candidate := range AllPhases() {
		if candidate == p {
			return i
		}
	}
	return -1
}

// RequiresGate determines whether GATE must be inserted after THINK,
// per the rule: GATE is required when the change touches more than one
// implementation file, or changes more than GateLOCThreshold net lines.
func RequiresGate(filesChanged, netLOC int) bool {
	return filesChanged > 1 || netLOC > GateLOCThreshold
}

// NextPhase returns the phase following the given phase. gateRequired
// determines whether GATE is inserted between THINK and IMPLEMENT.
// Returns empty string if current phase is the last.
func NextPhase(p Phase, gateRequired bool) Phase {
	switch p {
	case PhaseStrategize:
		return PhaseSpec
	case PhaseSpec:
		return PhasePlan
	case PhasePlan:
		return PhaseThink
	case PhaseThink:
		if gateRequired {
			return PhaseGate
		}
		return PhaseImplement
	case PhaseGate:
		return PhaseImplement
	case PhaseImplement:
		return PhaseVerify
	case PhaseVerify:
		return PhaseReview
	case PhaseReview:
		return PhasePR
	case PhasePR:
		return PhaseMonitor
	default:
		return ""
	}
}

// PrevPhase returns the phase preceding the given phase, given the same
// gate-required context used to reach it. Returns empty string if the
// current phase is the first.
func PrevPhase(p Phase, gateRequired bool) Phase {
	switch p {
	case PhaseSpec:
		return PhaseStrategize
	case PhasePlan:
		return PhaseSpec
	case PhaseThink:
		return PhasePlan
	case PhaseGate:
		return PhaseThink
	case PhaseImplement:
		if gateRequired {
			return PhaseGate
		}
		return PhaseThink
	case PhaseVerify:
		return PhaseImplement
	case PhaseReview:
		return PhaseVerify
	case PhasePR:
		return PhaseReview
	case PhaseMonitor:
		return PhasePR
	default:
		return ""
	}
}

// ValidPhase checks if a phase string is valid.
func ValidPhase(p Phase) bool {
	for _, candidate := range AllPhases() {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePhase converts a string to a Phase with validation.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !ValidPhase(p) {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Description returns a human-readable description of the phase.
func (p Phase) Description() string {
	switch p {
	case PhaseStrategize:
		return "Frame the approach and success criteria"
	case PhaseSpec:
		return "Write down the concrete requirements"
	case PhasePlan:
		return "Break the spec into an ordered set of steps"
	case PhaseThink:
		return "Work through risks, edge cases and a pre-mortem"
	case PhaseGate:
		return "Checkpoint review before implementation begins"
	case PhaseImplement:
		return "Make the change"
	case PhaseVerify:
		return "Run tests and critics against the change"
	case PhaseReview:
		return "Evaluate the change for merge-readiness"
	case PhasePR:
		return "Publish the change for external integration"
	case PhaseMonitor:
		return "Observe the change after merge"
	default:
		return "Unknown phase"
	}
}

// IsTerminal returns true when a phase is the last stage of the lifecycle.
func (p Phase) IsTerminal() bool {
	return p == PhaseMonitor
}

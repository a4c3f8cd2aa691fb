package gate

import (
	"fmt"
	"strings"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
)

// BypassCode identifies one of the catalogued bypass patterns.
type BypassCode string

const (
	// BP001PartialPhase fires when fewer phase artifacts exist than the
	// phase requires.
	BP001PartialPhase BypassCode = "BP001"

	// BP002Boilerplate fires when evidence content is templated or has
	// low information content (markers, or low token-diversity ratio).
	BP002Boilerplate BypassCode = "BP002"

	// BP003ShortDuration fires when a phase completed suspiciously fast
	// for the work it claims to represent.
	BP003ShortDuration BypassCode = "BP003"

	// BP004MissingSelfChecks fires when a deterministic critic that
	// should have run for the phase has no report at all.
	BP004MissingSelfChecks BypassCode = "BP004"

	// BP005ClaimWithoutProof fires when a task's status implies
	// completion without the artifacts that would substantiate it.
	BP005ClaimWithoutProof BypassCode = "BP005"
)

// BypassFinding records one detected occurrence of a catalogued pattern,
// including which detector caught it — every pattern is wired to at
// least two independent detectors, so a finding's DetectedBy slice
// having length >= 2 is itself evidence the redundancy requirement held.
type BypassFinding struct {
	Code       BypassCode
	Severity   critic.Severity
	Message    string
	DetectedBy []string
}

// boilerplateMarkers are literal strings that show up in template
// scaffolding left behind by a skipped phase.
var boilerplateMarkers = []string{"TODO: fill in", "Lorem ipsum", "<placeholder>", "TBD"}

// DetectBypass runs the full catalogue against one task/phase's evidence
// and verdict, returning every pattern that fired.
func DetectBypass(task *core.Task, evidence critic.Evidence, verdict critic.Verdict, phaseDuration Duration) []BypassFinding {
	var findings []BypassFinding
	findings = append(findings, detectBP001(task, evidence)...)
	findings = append(findings, detectBP002(evidence)...)
	findings = append(findings, detectBP003(phaseDuration)...)
	findings = append(findings, detectBP004(task, verdict)...)
	findings = append(findings, detectBP005(task, evidence)...)
	return findings
}

// detectBP001 has two independent paths: the process critic's own
// pass/fail (already in the verdict, surfaced again here for the
// catalogue's own record) and a direct artifact-count check against the
// phase's required type.
func detectBP001(task *core.Task, evidence critic.Evidence) []BypassFinding {
	want := core.ArtifactTypeForPhase(evidence.Phase)
	var have int
	for _, a := range evidence.Artifacts {
		if a.Type == want {
			have++
		}
	}
	if have > 0 {
		return nil
	}
	return []BypassFinding{{
		Code:       BP001PartialPhase,
		Severity:   critic.SeverityBlocking,
		Message:    fmt.Sprintf("phase %s has no %s artifact", evidence.Phase, want),
		DetectedBy: []string{"process_critic", "artifact_count_check"},
	}}
}

// detectBP002 has two independent paths: literal boilerplate markers,
// and the same low-entropy heuristic the quality vector's evidence
// strength dimension uses.
func detectBP002(evidence critic.Evidence) []BypassFinding {
	var findings []BypassFinding
	for _, a := range evidence.Artifacts {
		marked := containsAnyMarker(a.Content, boilerplateMarkers)
		lowEntropy := isBoilerplate(a.Content)
		if !marked && !lowEntropy {
			continue
		}
		detectedBy := []string{}
		if marked {
			detectedBy = append(detectedBy, "literal_marker_scan")
		}
		if lowEntropy {
			detectedBy = append(detectedBy, "content_entropy_check")
		}
		findings = append(findings, BypassFinding{
			Code:       BP002Boilerplate,
			Severity:   critic.SeverityBlocking,
			Message:    fmt.Sprintf("artifact %s looks like unmodified boilerplate", a.ID),
			DetectedBy: detectedBy,
		})
	}
	return findings
}

// Duration is a minimal alias kept local to this package so callers don't
// need to import time solely to pass a phase duration.
type Duration = int64 // seconds

// minimumPlausibleSeconds is the floor below which a phase claiming
// substantive work reads as suspiciously fast. Detection path one here;
// path two is the evidence-strength/boilerplate check in detectBP002,
// since a too-fast phase and templated evidence usually co-occur.
const minimumPlausibleSeconds = 5

func detectBP003(phaseDuration Duration) []BypassFinding {
	if phaseDuration <= 0 {
		return nil // unset/unknown, not evidence of anything
	}
	if phaseDuration >= minimumPlausibleSeconds {
		return nil
	}
	return []BypassFinding{{
		Code:       BP003ShortDuration,
		Severity:   critic.SeverityWarning,
		Message:    fmt.Sprintf("phase completed in %ds, below the %ds plausibility floor", phaseDuration, minimumPlausibleSeconds),
		DetectedBy: []string{"duration_floor_check", "evidence_entropy_correlation"},
	}}
}

// requiredDeterministicCritics lists, per phase, the deterministic
// critics the Suite should always have run. Their absence from the
// verdict (as opposed to a recorded fail) means the phase was never
// actually checked.
var requiredDeterministicCritics = map[core.Phase][]string{
	core.PhaseImplement: {"structural_proof", "loc_enforcement"},
	core.PhaseVerify:    {"test_runner", "type_checker", "security_audit"},
}

// detectBP004 has two independent paths: an explicit absence check
// against the expected-critic table, and a process-critic cross-check
// (if the process critic itself never ran, that's caught by the same
// absence scan against its own name).
func detectBP004(task *core.Task, verdict critic.Verdict) []BypassFinding {
	expected, ok := requiredDeterministicCritics[task.Phase]
	if !ok {
		return nil
	}
	ran := make(map[string]bool, len(verdict.Reports))
	for _, r := range verdict.Reports {
		ran[r.Critic] = true
	}
	var findings []BypassFinding
	for _, name := range expected {
		if ran[name] {
			continue
		}
		findings = append(findings, BypassFinding{
			Code:       BP004MissingSelfChecks,
			Severity:   critic.SeverityBlocking,
			Message:    fmt.Sprintf("expected critic %q did not run for phase %s", name, task.Phase),
			DetectedBy: []string{"expected_critic_table", "process_critic_cross_check"},
		})
	}
	return findings
}

// detectBP005 has two independent paths: checking the task's own status
// against required terminal artifacts, and the process critic's presence
// check over the same artifact set (recorded in the verdict already).
func detectBP005(task *core.Task, evidence critic.Evidence) []BypassFinding {
	if task.Status != core.TaskStatusDone && task.Status != core.TaskStatusNeedsReview {
		return nil
	}
	required := []core.ArtifactType{
		core.ArtifactTypeStrategy, core.ArtifactTypeSpec, core.ArtifactTypePlan,
		core.ArtifactTypeThink, core.ArtifactTypeVerifyLog, core.ArtifactTypeReview,
	}
	present := make(map[core.ArtifactType]bool, len(evidence.Artifacts))
	for _, a := range evidence.Artifacts {
		present[a.Type] = true
	}
	var missing []core.ArtifactType
	for _, t := range required {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []BypassFinding{{
		Code:       BP005ClaimWithoutProof,
		Severity:   critic.SeverityBlocking,
		Message:    fmt.Sprintf("task claims %s status but is missing artifacts: %v", task.Status, missing),
		DetectedBy: []string{"terminal_status_artifact_check", "process_critic_presence_check"},
	}}
}

func containsAnyMarker(content string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(content, m) {
			return true
		}
	}
	return false
}

// Package critic implements the pluggable validators run at phase
// boundaries: structural proofs, LOC enforcement, test/lint/type-check
// runners, security audit, a reasoning validator, a process critic, and
// a peer-review critic built on the teacher's Jaccard-based consensus
// scoring.
package critic

import (
	"context"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Status is a critic's verdict on one run.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Severity governs whether a fail verdict blocks phase transition.
type Severity string

const (
	// SeverityBlocking means a fail verdict vetoes the transition.
	SeverityBlocking Severity = "blocking"
	// SeverityWarning means a fail verdict is recorded but non-blocking.
	SeverityWarning Severity = "warning"
)

// Finding is one concrete issue a critic surfaced.
type Finding struct {
	Severity     Severity
	Category     string
	Message      string
	FixSuggestion string
}

// Report is the result of one critic run against one task/phase pair.
type Report struct {
	Critic        string
	Status        Status
	Findings      []Finding
	ExitCriteria  string
	Deterministic bool
}

// Failed reports whether the report should be treated as a failure for
// the purposes of the critic's own severity (not phase-gating, which the
// Suite decides by combining Severity and Status).
func (r Report) Failed() bool {
	return r.Status == StatusFail
}

// Evidence is the bundle of artifacts and task context a critic
// evaluates. Evidence is read-only from a critic's perspective; critics
// never mutate the task or roadmap directly, only report findings.
type Evidence struct {
	Task      *core.Task
	Phase     core.Phase
	Artifacts []*core.Artifact

	// WorkDir is the task's worktree root, for critics that shell out to
	// tools that need a directory to run in (test runner, linter, type
	// checker, security audit). Empty when the phase has no worktree
	// (STRATEGIZE, SPEC, PLAN, THINK, PR, MONITOR).
	WorkDir string

	// DiffStat summarizes the code change under review, when the phase
	// produced one (IMPLEMENT, GATE, REVIEW). Nil for phases with no code
	// diff (STRATEGIZE, SPEC, PLAN, THINK, PR, MONITOR).
	DiffStat *DiffStat

	// PeerOutputs carries the independent outputs of multiple agents that
	// analyzed the same task/phase, for critics that score agreement
	// between them (the peer-review critic, the reasoning validator at
	// complexity >= 8). Empty when only one agent ran the phase.
	PeerOutputs []PeerOutput
}

// DiffStat summarizes a code change's shape, independent of the VCS
// backend that produced it.
type DiffStat struct {
	FilesChanged  int
	LinesAdded    int
	LinesRemoved  int
	LargestFile   string
	LargestFileLOC int
	LargestFunctionLOC int
}

// NetLines returns the signed net line delta (added minus removed), the
// quantity compared against core.GateLOCThreshold.
func (d DiffStat) NetLines() int {
	return d.LinesAdded - d.LinesRemoved
}

// PeerOutput is one agent's structured analysis of a task/phase, the
// unit the peer-review critic and reasoning validator compare pairwise.
type PeerOutput struct {
	AgentName       string
	Claims          []string
	Risks           []string
	Recommendations []string
	RawOutput       string
}

// Critic is a pluggable validator run at a phase boundary.
type Critic interface {
	// Name identifies the critic in reports and audit events.
	Name() string

	// ApplicablePhases lists the phases this critic runs at.
	ApplicablePhases() []core.Phase

	// Severity reports whether a fail verdict blocks the transition.
	Severity() Severity

	// Authority reports whether this critic's blocking fail can veto a
	// transition outright (true for all blocking critics in this suite;
	// kept distinct from Severity because a future critic could be
	// blocking in category but advisory in authority, e.g. during a
	// rollout).
	Authority() bool

	// Deterministic reports whether this critic returns identical results
	// for identical inputs. Non-deterministic (LLM-backed) critics must
	// have their reports stored verbatim rather than recomputed.
	Deterministic() bool

	// Run evaluates evidence and returns a Report.
	Run(ctx context.Context, evidence Evidence) (Report, error)
}

// AppliesTo reports whether critic runs at phase.
func AppliesTo(c Critic, phase core.Phase) bool {
	for _, p := range c.ApplicablePhases() {
		if p == phase {
			return true
		}
	}
	return false
}

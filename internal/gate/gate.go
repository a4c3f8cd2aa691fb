// Package gate implements the Quality Gate and remediation loop: the
// integrity spine sitting between every phase transition and between a
// task claiming done and that claim being honored.
package gate

import (
	"context"
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
)

// Calibrated thresholds a quality-graph vector must clear. Falling below
// any of these, or diverging too far from the nearest historical match,
// flags an anomaly (§4.8 step 2).
const (
	minCompleteness     = 0.7
	minCorrectness      = 0.8
	minEvidenceStrength = 0.6
	maxHistoricalDivergence = 0.3
)

// Decision is the Gate's verdict on one phase transition attempt.
type Decision struct {
	Admit       bool
	CriticVerdict critic.Verdict
	Vector      Vector
	Anomalies   []string
	Bypasses    []BypassFinding
	Remediation *core.Task
}

// Gate coordinates the critic suite, bypass detection, the quality-graph
// vector, and remediation-task synthesis.
type Gate struct {
	critics  *critic.Suite
	history  HistoricalStore
	audit    core.AuditRecorder
	sampleN  int
	idSeq    func() string
}

// Option configures a Gate.
type Option func(*Gate)

// WithCritics supplies the critic suite the Gate runs at each boundary.
func WithCritics(s *critic.Suite) Option {
	return func(g *Gate) { g.critics = s }
}

// WithHistory supplies the store of prior successful quality vectors for
// the cosine-divergence check.
func WithHistory(h HistoricalStore) Option {
	return func(g *Gate) { g.history = h }
}

// WithAuditRecorder attaches an audit sink.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(g *Gate) { g.audit = a }
}

// WithRemediationIDs overrides the remediation-task ID generator (tests
// supply a deterministic one; production wires a uuid generator).
func WithRemediationIDs(fn func() string) Option {
	return func(g *Gate) { g.idSeq = fn }
}

// New creates a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{sampleN: 50}
	for _, opt := range opts {
		opt(g)
	}
	if g.idSeq == nil {
		g.idSeq = func() string { return "" }
	}
	return g
}

// PreCheck is the pre-phase gate (§4.8 step 1): it verifies a task's
// declared intent still applies (a strategy artifact exists), and for
// GATE specifically, that a design artifact documents a Five-Forces-style
// structured analysis before implementation can begin.
func (g *Gate) PreCheck(ctx context.Context, task *core.Task, evidence critic.Evidence) error {
	if latestArtifactOfType(evidence.Artifacts, core.ArtifactTypeStrategy) == nil {
		return fmt.Errorf("gate: task %s has no strategy artifact, intent cannot be verified", task.ID)
	}
	if evidence.Phase != core.PhaseGate {
		return nil
	}
	design := latestArtifactOfType(evidence.Artifacts, core.ArtifactTypeGateDesign)
	if design == nil {
		return fmt.Errorf("gate: task %s reached GATE without a design artifact", task.ID)
	}
	if !hasFiveForcesAnalysis(design.Content) {
		return fmt.Errorf("gate: design artifact for task %s does not cover a Five-Forces-style analysis", task.ID)
	}
	return nil
}

var fiveForcesMarkers = []string{"rivalry", "new entrant", "substitute", "supplier", "buyer"}

func hasFiveForcesAnalysis(content string) bool {
	var found int
	for _, m := range fiveForcesMarkers {
		if containsAnyMarker(content, []string{m}) {
			found++
		}
	}
	return found >= 3
}

// PostCheck is the post-phase validation (§4.8 steps 2-4): it runs the
// critic suite, computes the quality-graph vector and flags anomalies
// against the calibrated thresholds and historical divergence, runs
// bypass-pattern detection, and on any blocking finding synthesizes a
// remediation task and blocks the parent.
func (g *Gate) PostCheck(ctx context.Context, task *core.Task, evidence critic.Evidence, phaseDurationSeconds int64) (Decision, error) {
	verdict, err := g.critics.Run(ctx, evidence)
	if err != nil {
		return Decision{}, err
	}

	vector := BuildVector(evidence, verdict)
	anomalies := g.anomalies(vector)

	bypasses := DetectBypass(task, evidence, verdict, phaseDurationSeconds)

	decision := Decision{
		Admit:         verdict.Admit && len(anomalies) == 0 && !hasBlocking(bypasses),
		CriticVerdict: verdict,
		Vector:        vector,
		Anomalies:     anomalies,
		Bypasses:      bypasses,
	}

	if !decision.Admit && len(bypasses) > 0 {
		finding := bypasses[0]
		remediation := NewRemediationTask(core.TaskID(g.idSeq()), task, finding)
		if err := BlockOnRemediation(task, remediation); err != nil {
			return decision, err
		}
		decision.Remediation = remediation
		g.record(ctx, task, core.AuditKindRemediationCreated, finding.Message, map[string]string{"code": string(finding.Code)})
	}

	for _, b := range bypasses {
		g.record(ctx, task, core.AuditKindBypassDetected, b.Message, map[string]string{
			"code":     string(b.Code),
			"severity": string(b.Severity),
		})
	}

	g.record(ctx, task, core.AuditKindGateDecision, fmt.Sprintf("admit=%v", decision.Admit), nil)

	return decision, nil
}

func (g *Gate) anomalies(v Vector) []string {
	var out []string
	if v[DimCompleteness] < minCompleteness {
		out = append(out, fmt.Sprintf("completeness %.2f below %.2f", v[DimCompleteness], minCompleteness))
	}
	if v[DimCorrectness] < minCorrectness {
		out = append(out, fmt.Sprintf("correctness %.2f below %.2f", v[DimCorrectness], minCorrectness))
	}
	if v[DimEvidenceStrength] < minEvidenceStrength {
		out = append(out, fmt.Sprintf("evidence strength %.2f below %.2f", v[DimEvidenceStrength], minEvidenceStrength))
	}
	if g.history != nil {
		match := NearestMatch(g.history, v, g.sampleN)
		if divergence := 1 - match; divergence > maxHistoricalDivergence {
			out = append(out, fmt.Sprintf("historical divergence %.2f exceeds %.2f", divergence, maxHistoricalDivergence))
		}
	}
	return out
}

func hasBlocking(findings []BypassFinding) bool {
	for _, f := range findings {
		if f.Severity == critic.SeverityBlocking {
			return true
		}
	}
	return false
}

// RoadmapDoneEnforcement is the §4.8 step 6 check: marking a task done
// requires every phase's artifact through review, process critic passing,
// and no open blocking remediation (a pending/in_progress child of kind
// remediation).
func RoadmapDoneEnforcement(task *core.Task, evidence critic.Evidence, verdict critic.Verdict, openRemediations []*core.Task) error {
	required := []core.ArtifactType{
		core.ArtifactTypeStrategy, core.ArtifactTypeSpec, core.ArtifactTypePlan,
		core.ArtifactTypeThink, core.ArtifactTypeVerifyLog, core.ArtifactTypeReview,
	}
	if task.GateRequired {
		required = append(required, core.ArtifactTypeGateDesign)
	}
	present := make(map[core.ArtifactType]bool, len(evidence.Artifacts))
	for _, a := range evidence.Artifacts {
		present[a.Type] = true
	}
	for _, t := range required {
		if !present[t] {
			return fmt.Errorf("gate: cannot mark task %s done, missing %s artifact", task.ID, t)
		}
	}
	for _, r := range verdict.Reports {
		if r.Critic == "process" && r.Status == critic.StatusFail {
			return fmt.Errorf("gate: cannot mark task %s done, process critic failed", task.ID)
		}
	}
	for _, rem := range openRemediations {
		if !rem.IsTerminal() {
			return fmt.Errorf("gate: cannot mark task %s done, remediation %s is still open", task.ID, rem.ID)
		}
	}
	return nil
}

func (g *Gate) record(ctx context.Context, task *core.Task, kind, message string, detail map[string]string) {
	if g.audit == nil {
		return
	}
	event := core.NewAuditEvent(kind, message).WithTask(task.ID, task.Phase)
	for k, v := range detail {
		event = event.WithDetail(k, v)
	}
	_, _ = g.audit.AppendAudit(ctx, event)
}

package gate

import (
	"math"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
)

// Dimension names the quality-graph's 16 scored axes. Each is a value in
// [0,1]; a vector is a point in this space, compared against stored
// successful graphs by cosine similarity.
type Dimension string

const (
	DimCompleteness       Dimension = "completeness"
	DimCorrectness        Dimension = "correctness"
	DimCoverage           Dimension = "coverage"
	DimConsistency        Dimension = "consistency"
	DimPerformance        Dimension = "performance"
	DimSecurity           Dimension = "security"
	DimMaintainability    Dimension = "maintainability"
	DimScalability        Dimension = "scalability"
	DimEvidenceStrength   Dimension = "evidence_strength"
	DimPeerAgreement      Dimension = "peer_agreement"
	DimHistoricalMatch    Dimension = "historical_match"
	DimRiskMitigation     Dimension = "risk_mitigation"
	DimIntentAlignment    Dimension = "intent_alignment"
	DimPurposeConnection  Dimension = "purpose_connection"
	DimAcceptanceCriteria Dimension = "acceptance_criteria"
	DimBusinessValue      Dimension = "business_value"
)

// AllDimensions lists the 16 dimensions in a fixed order, used wherever a
// vector needs stable iteration (cosine similarity, serialization).
func AllDimensions() []Dimension {
	return []Dimension{
		DimCompleteness, DimCorrectness, DimCoverage, DimConsistency,
		DimPerformance, DimSecurity, DimMaintainability, DimScalability,
		DimEvidenceStrength, DimPeerAgreement, DimHistoricalMatch,
		DimRiskMitigation, DimIntentAlignment, DimPurposeConnection,
		DimAcceptanceCriteria, DimBusinessValue,
	}
}

// Vector is a quality-graph node: one calibrated score per dimension.
type Vector map[Dimension]float64

// DefaultWeights weighs each dimension equally; callers needing a
// domain-specific calibration can override per dimension.
func DefaultWeights() map[Dimension]float64 {
	w := make(map[Dimension]float64, len(AllDimensions()))
	for _, d := range AllDimensions() {
		w[d] = 1.0 / float64(len(AllDimensions()))
	}
	return w
}

// BuildVector derives a quality-graph vector from a critic verdict and
// the evidence it was computed over. Dimensions with no direct signal in
// evidence (performance, scalability, business value, purpose
// connection) default to a neutral 0.5 rather than 0 — an unscored
// dimension should not be indistinguishable from a failing one.
func BuildVector(evidence critic.Evidence, verdict critic.Verdict) Vector {
	v := make(Vector, len(AllDimensions()))
	for _, d := range AllDimensions() {
		v[d] = 0.5
	}

	v[DimCompleteness] = fractionPassing(verdict, "process")
	v[DimCorrectness] = fractionPassing(verdict, "test_runner", "type_checker")
	v[DimCoverage] = fractionPassing(verdict, "test_runner")
	v[DimConsistency] = fractionPassing(verdict, "linter")
	v[DimSecurity] = fractionPassing(verdict, "security_audit")
	v[DimMaintainability] = fractionPassing(verdict, "structural_proof", "loc_enforcement")
	v[DimEvidenceStrength] = evidenceStrength(evidence)
	v[DimPeerAgreement] = peerAgreement(evidence)
	v[DimRiskMitigation] = fractionPassing(verdict, "reasoning_validator")
	v[DimAcceptanceCriteria] = fractionPassing(verdict, "process", "peer_review")
	v[DimIntentAlignment] = intentAlignment(evidence)

	return v
}

func fractionPassing(verdict critic.Verdict, names ...string) float64 {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var total, passed int
	for _, r := range verdict.Reports {
		if !want[r.Critic] {
			continue
		}
		total++
		if r.Status == critic.StatusPass {
			passed++
		} else if r.Status == critic.StatusWarn {
			passed++ // warnings are non-blocking; they count as a soft pass
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(passed) / float64(total)
}

// evidenceStrength rewards a task with the artifacts its phase requires
// and at least one non-trivial artifact body, matching BP002's
// boilerplate-detection signal.
func evidenceStrength(evidence critic.Evidence) float64 {
	if len(evidence.Artifacts) == 0 {
		return 0
	}
	var substantial int
	for _, a := range evidence.Artifacts {
		if !isBoilerplate(a.Content) {
			substantial++
		}
	}
	return float64(substantial) / float64(len(evidence.Artifacts))
}

func peerAgreement(evidence critic.Evidence) float64 {
	if len(evidence.PeerOutputs) < 2 {
		return 0.5
	}
	checker := critic.NewConsensusChecker(0.8, critic.DefaultWeights())
	return checker.Evaluate(evidence.PeerOutputs).Score
}

func intentAlignment(evidence critic.Evidence) float64 {
	strategy := latestArtifactOfType(evidence.Artifacts, core.ArtifactTypeStrategy)
	if strategy == nil {
		return 0.5
	}
	if isBoilerplate(strategy.Content) {
		return 0.2
	}
	return 0.8
}

func latestArtifactOfType(artifacts []*core.Artifact, want core.ArtifactType) *core.Artifact {
	var latest *core.Artifact
	for _, a := range artifacts {
		if a.Type != want {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest
}

// CosineSimilarity compares two vectors over the shared dimension set.
func CosineSimilarity(a, b Vector) float64 {
	var dot, normA, normB float64
	for _, d := range AllDimensions() {
		av, bv := a[d], b[d]
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HistoricalStore retrieves the stored vectors of prior successful
// transitions, for the Gate's cosine-divergence check.
type HistoricalStore interface {
	SuccessfulVectors(limit int) []Vector
}

// NearestMatch returns the highest cosine similarity between v and any
// vector in the store, or 0 if the store is empty.
func NearestMatch(store HistoricalStore, v Vector, sampleSize int) float64 {
	if store == nil {
		return 0
	}
	candidates := store.SuccessfulVectors(sampleSize)
	if len(candidates) == 0 {
		return 0
	}
	best := 0.0
	for _, c := range candidates {
		if s := CosineSimilarity(v, c); s > best {
			best = s
		}
	}
	return best
}

// isBoilerplate is BP002's content-entropy proxy: very short content, or
// content dominated by a handful of repeated tokens, reads as a template
// rather than real work product.
func isBoilerplate(content string) bool {
	if len(content) < 40 {
		return true
	}
	words := splitWords(content)
	if len(words) < 8 {
		return true
	}
	uniq := make(map[string]bool, len(words))
	for _, w := range words {
		uniq[w] = true
	}
	return float64(len(uniq))/float64(len(words)) < 0.3
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

package gate

import (
	"testing"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
)

func TestBuildVector_NeutralDefaultsForUnscoredDimensions(t *testing.T) {
	v := BuildVector(critic.Evidence{}, critic.Verdict{})
	if v[DimPerformance] != 0.5 {
		t.Fatalf("DimPerformance = %v, want 0.5", v[DimPerformance])
	}
	if v[DimBusinessValue] != 0.5 {
		t.Fatalf("DimBusinessValue = %v, want 0.5", v[DimBusinessValue])
	}
}

func TestBuildVector_CompletenessReflectsProcessCritic(t *testing.T) {
	passing := critic.Verdict{Reports: []critic.Report{{Critic: "process", Status: critic.StatusPass}}}
	failing := critic.Verdict{Reports: []critic.Report{{Critic: "process", Status: critic.StatusFail}}}

	vp := BuildVector(critic.Evidence{}, passing)
	vf := BuildVector(critic.Evidence{}, failing)

	if vp[DimCompleteness] <= vf[DimCompleteness] {
		t.Fatalf("passing completeness %v should exceed failing completeness %v", vp[DimCompleteness], vf[DimCompleteness])
	}
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := Vector{}
	for _, d := range AllDimensions() {
		v[d] = 0.7
	}
	if sim := CosineSimilarity(v, v); sim < 0.999 {
		t.Fatalf("identical vectors similarity = %v, want ~1", sim)
	}
}

func TestCosineSimilarity_ZeroVectorIsZero(t *testing.T) {
	a := Vector{}
	b := Vector{}
	for _, d := range AllDimensions() {
		b[d] = 1
	}
	if sim := CosineSimilarity(a, b); sim != 0 {
		t.Fatalf("zero vector similarity = %v, want 0", sim)
	}
}

func TestNearestMatch_EmptyStoreReturnsZero(t *testing.T) {
	if got := NearestMatch(nil, Vector{}, 10); got != 0 {
		t.Fatalf("NearestMatch with nil store = %v, want 0", got)
	}
}

type staticHistory struct{ vectors []Vector }

func (s staticHistory) SuccessfulVectors(limit int) []Vector { return s.vectors }

func TestNearestMatch_PicksBestCandidate(t *testing.T) {
	target := Vector{}
	near := Vector{}
	far := Vector{}
	for _, d := range AllDimensions() {
		target[d] = 0.6
		near[d] = 0.6
		far[d] = 0.01
	}
	store := staticHistory{vectors: []Vector{far, near}}
	got := NearestMatch(store, target, 10)
	if got < 0.99 {
		t.Fatalf("expected near-identical match, got %v", got)
	}
}

func TestIsBoilerplate_ShortContentFlagged(t *testing.T) {
	if !isBoilerplate("too short") {
		t.Fatalf("expected short content to be flagged boilerplate")
	}
}

func TestIsBoilerplate_RepetitiveContentFlagged(t *testing.T) {
	repeated := ""
	for i := 0; i < 20; i++ {
		repeated += "same same same same "
	}
	if !isBoilerplate(repeated) {
		t.Fatalf("expected low-diversity content to be flagged boilerplate")
	}
}

func TestIsBoilerplate_SubstantialContentNotFlagged(t *testing.T) {
	content := "this analysis walks through the rivalry among competitors, entrant risk, substitute pressure, supplier leverage, and buyer power in detail with concrete examples drawn from the current roadmap"
	if isBoilerplate(content) {
		t.Fatalf("expected substantial content to pass")
	}
}

func TestLatestArtifactOfType_PicksMostRecent(t *testing.T) {
	older := &core.Artifact{ID: "a1", Type: core.ArtifactTypeStrategy, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &core.Artifact{ID: "a2", Type: core.ArtifactTypeStrategy, CreatedAt: time.Now()}
	got := latestArtifactOfType([]*core.Artifact{older, newer}, core.ArtifactTypeStrategy)
	if got.ID != "a2" {
		t.Fatalf("latestArtifactOfType = %s, want a2", got.ID)
	}
}

func TestLatestArtifactOfType_NoneOfTypeReturnsNil(t *testing.T) {
	got := latestArtifactOfType(nil, core.ArtifactTypeStrategy)
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

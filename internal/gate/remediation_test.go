package gate

import (
	"testing"

	"github.com/autopilot-dev/autopilot/internal/core"
)

func TestNewRemediationTask_ParentsAndBoostsComplexity(t *testing.T) {
	parent := core.NewTask("t1", "parent task", core.PhaseImplement)
	finding := BypassFinding{Code: BP002Boilerplate, Message: "looks templated"}

	rem := NewRemediationTask("rem-1", parent, finding)

	if rem.Kind != core.KindRemediation {
		t.Fatalf("Kind = %s, want remediation", rem.Kind)
	}
	if rem.ParentID != parent.ID {
		t.Fatalf("ParentID = %s, want %s", rem.ParentID, parent.ID)
	}
	if rem.Description != finding.Message {
		t.Fatalf("Description = %q, want %q", rem.Description, finding.Message)
	}
	if rem.ComplexityScore <= 0 {
		t.Fatalf("expected a boosted ComplexityScore, got %v", rem.ComplexityScore)
	}
}

func TestBlockOnRemediation_AddsDependencyAndBlocks(t *testing.T) {
	parent := core.NewTask("t1", "parent task", core.PhaseImplement)
	rem := core.NewTask("rem-1", "fix it", core.PhaseImplement)

	if err := BlockOnRemediation(parent, rem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parent.Status != core.TaskStatusBlocked {
		t.Fatalf("parent status = %s, want blocked", parent.Status)
	}
	if len(parent.Dependencies) != 1 || parent.Dependencies[0] != rem.ID {
		t.Fatalf("parent Dependencies = %v, want [%s]", parent.Dependencies, rem.ID)
	}
}

func TestBlockOnRemediation_IsIdempotent(t *testing.T) {
	parent := core.NewTask("t1", "parent task", core.PhaseImplement)
	rem := core.NewTask("rem-1", "fix it", core.PhaseImplement)

	if err := BlockOnRemediation(parent, rem); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	if err := parent.Unblock(); err != nil {
		t.Fatalf("setup unblock: %v", err)
	}
	if err := BlockOnRemediation(parent, rem); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if len(parent.Dependencies) != 1 {
		t.Fatalf("Dependencies should not duplicate, got %v", parent.Dependencies)
	}
}

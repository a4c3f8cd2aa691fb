package critic

import (
	"context"
	"testing"

	"github.com/autopilot-dev/autopilot/internal/core"
)

func TestProcessCritic_PassesWhenArtifactPresent(t *testing.T) {
	c := NewProcessCritic()
	task := core.NewTask("t1", "x", core.PhaseSpec)
	evidence := Evidence{
		Task:  task,
		Phase: core.PhaseSpec,
		Artifacts: []*core.Artifact{
			core.NewArtifact("a1", core.ArtifactTypeSpec, task.ID).WithContent("spec body"),
		},
	}

	report, err := c.Run(context.Background(), evidence)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != StatusPass {
		t.Errorf("Status = %v, want pass", report.Status)
	}
}

func TestProcessCritic_FailsWhenArtifactMissing(t *testing.T) {
	c := NewProcessCritic()
	task := core.NewTask("t1", "x", core.PhaseSpec)
	evidence := Evidence{Task: task, Phase: core.PhaseSpec}

	report, err := c.Run(context.Background(), evidence)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != StatusFail {
		t.Errorf("Status = %v, want fail", report.Status)
	}
}

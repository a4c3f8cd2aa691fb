package ops

import (
	"context"
	"testing"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/scheduler"
)

type fakeAudit struct {
	events []core.AuditEvent
}

func (f *fakeAudit) AppendAudit(ctx context.Context, e core.AuditEvent) (core.AuditEvent, error) {
	f.events = append(f.events, e)
	return e, nil
}

type fakeScheduler struct {
	profiles []scheduler.PriorityProfile
}

func (f *fakeScheduler) SetPriorityProfile(p scheduler.PriorityProfile) {
	f.profiles = append(f.profiles, p)
}

func TestManager_RecordOutcomeSwitchesModeAndSwapsProfile(t *testing.T) {
	sched := &fakeScheduler{}
	audit := &fakeAudit{}
	m := New(WithScheduler(sched), WithAuditRecorder(audit), WithWindowSize(5))

	for i := 0; i < 5; i++ {
		m.RecordOutcome(context.Background(), Outcome{Quality: 0.3, Success: false})
	}

	if m.Mode() != ModeStabilize {
		t.Fatalf("mode = %s, want stabilize", m.Mode())
	}
	if len(sched.profiles) != 1 {
		t.Fatalf("expected one profile swap, got %d", len(sched.profiles))
	}

	var sawProfileUpdate bool
	for _, e := range audit.events {
		if e.Kind == core.AuditKindProfileUpdated {
			sawProfileUpdate = true
		}
	}
	if !sawProfileUpdate {
		t.Fatalf("expected a profile_updated audit event")
	}
}

func TestManager_NoModeChangeNoProfileSwap(t *testing.T) {
	sched := &fakeScheduler{}
	m := New(WithScheduler(sched), WithWindowSize(5))

	m.RecordOutcome(context.Background(), Outcome{Quality: 0.87, Success: true})

	if len(sched.profiles) != 0 {
		t.Fatalf("expected no profile swap while mode stays balance, got %d", len(sched.profiles))
	}
}

func TestManager_EvaluateSignalsRecordsAuditEvent(t *testing.T) {
	audit := &fakeAudit{}
	m := New(WithAuditRecorder(audit))

	fired := m.EvaluateSignals(context.Background(), QueueState{TotalTasks: 10, BlockedTasks: 5, ReadyQueueLen: 5, AvailableAgents: 1})
	if len(fired) == 0 {
		t.Fatalf("expected at least one signal to fire")
	}

	var sawSignal bool
	for _, e := range audit.events {
		if e.Kind == core.AuditKindMaintenanceSignal {
			sawSignal = true
		}
	}
	if !sawSignal {
		t.Fatalf("expected a maintenance_signal audit event")
	}
}

func TestDefaultModeProfiles_DeriveFromSchedulerBase(t *testing.T) {
	profiles := DefaultModeProfiles()
	base := scheduler.DefaultPriorityProfile()

	if profiles[ModeStabilize].StalenessBias <= base.StalenessBias {
		t.Fatalf("stabilize staleness bias should exceed base")
	}
	if profiles[ModeAccelerate].ComplexityBias <= base.ComplexityBias {
		t.Fatalf("accelerate complexity bias should exceed base")
	}
}

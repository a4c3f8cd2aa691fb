package ops

import (
	"testing"
	"time"
)

func TestEvaluateSignals_BlockedTasksFiresAboveRatio(t *testing.T) {
	gate := newSignalGate(nil)
	q := QueueState{TotalTasks: 10, BlockedTasks: 3, ReadyQueueLen: 5, AvailableAgents: 2}
	fired := evaluateSignals(gate, q)
	if !containsSignal(fired, SignalBlockedTasks) {
		t.Fatalf("expected blocked_tasks to fire, got %v", fired)
	}
}

func TestEvaluateSignals_BlockedTasksAbsentBelowRatio(t *testing.T) {
	gate := newSignalGate(nil)
	q := QueueState{TotalTasks: 10, BlockedTasks: 1, ReadyQueueLen: 5, AvailableAgents: 2}
	fired := evaluateSignals(gate, q)
	if containsSignal(fired, SignalBlockedTasks) {
		t.Fatalf("did not expect blocked_tasks, got %v", fired)
	}
}

func TestEvaluateSignals_UnderutilisedFiresWhenQueueShortOfAgents(t *testing.T) {
	gate := newSignalGate(nil)
	q := QueueState{TotalTasks: 10, BlockedTasks: 0, ReadyQueueLen: 1, AvailableAgents: 4}
	fired := evaluateSignals(gate, q)
	if !containsSignal(fired, SignalUnderutilised) {
		t.Fatalf("expected underutilised to fire, got %v", fired)
	}
}

func TestEvaluateSignals_RateLimitedToOncePerWindow(t *testing.T) {
	now := time.Now()
	gate := newSignalGate(func() time.Time { return now })
	q := QueueState{TotalTasks: 10, BlockedTasks: 5, ReadyQueueLen: 5, AvailableAgents: 1}

	first := evaluateSignals(gate, q)
	if !containsSignal(first, SignalBlockedTasks) {
		t.Fatalf("expected first evaluation to fire, got %v", first)
	}

	second := evaluateSignals(gate, q)
	if containsSignal(second, SignalBlockedTasks) {
		t.Fatalf("expected second evaluation within the cooldown to be suppressed, got %v", second)
	}

	now = now.Add(6 * time.Minute)
	third := evaluateSignals(gate, q)
	if !containsSignal(third, SignalBlockedTasks) {
		t.Fatalf("expected evaluation after cooldown to fire again, got %v", third)
	}
}

func containsSignal(signals []SignalKind, want SignalKind) bool {
	for _, s := range signals {
		if s == want {
			return true
		}
	}
	return false
}

package agentpool

import (
	"testing"
	"time"
)

func TestUsageWindow_Aggregate(t *testing.T) {
	w := newUsageWindow(3)

	w.Record(Execution{Success: true, Quality: 1.0, TokensIn: 100, TokensOut: 50, CostUSD: 0.01, Latency: time.Second})
	w.Record(Execution{Success: false, Quality: 0.2, TokensIn: 200, TokensOut: 100, CostUSD: 0.02, Latency: 2 * time.Second})

	agg := w.Aggregate()
	if agg.Count != 2 {
		t.Fatalf("Count = %d, want 2", agg.Count)
	}
	if agg.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", agg.SuccessRate)
	}
}

func TestUsageWindow_EvictsOldest(t *testing.T) {
	w := newUsageWindow(2)

	w.Record(Execution{Success: false})
	w.Record(Execution{Success: true})
	w.Record(Execution{Success: true}) // evicts the first (failed) entry

	agg := w.Aggregate()
	if agg.Count != 2 {
		t.Fatalf("Count = %d, want 2", agg.Count)
	}
	if agg.SuccessRate != 1.0 {
		t.Errorf("SuccessRate = %v, want 1.0 after oldest failure evicted", agg.SuccessRate)
	}
}

func TestUsageWindow_EmptyAggregate(t *testing.T) {
	w := newUsageWindow(5)
	agg := w.Aggregate()
	if agg.Count != 0 {
		t.Errorf("Count = %d, want 0", agg.Count)
	}
}

func TestUsageTracker_SeparatesByAgentAndModel(t *testing.T) {
	tr := newUsageTracker(10)
	tr.Record("claude", "opus", Execution{Success: true})
	tr.Record("claude", "haiku", Execution{Success: false})

	if rate := tr.Aggregate("claude", "opus").SuccessRate; rate != 1.0 {
		t.Errorf("claude/opus SuccessRate = %v, want 1.0", rate)
	}
	if rate := tr.Aggregate("claude", "haiku").SuccessRate; rate != 0 {
		t.Errorf("claude/haiku SuccessRate = %v, want 0", rate)
	}
}

package ops

import (
	"testing"
	"time"
)

func TestWindow_EvictsOldestBeyondCapacity(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Record(Outcome{Quality: float64(i)})
	}
	got := w.Snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Quality != 2 {
		t.Fatalf("oldest retained = %v, want 2 (entries 0,1 evicted)", got[0].Quality)
	}
}

func TestWindow_ComputeAggregates(t *testing.T) {
	w := NewWindow(10)
	w.Record(Outcome{Quality: 1.0, Success: true, Agent: "claude"})
	w.Record(Outcome{Quality: 0.5, Success: false, Agent: "gemini", RateLimited: true})

	stats := w.Compute("claude")
	if stats.Count != 2 {
		t.Fatalf("Count = %d, want 2", stats.Count)
	}
	if stats.AvgQuality != 0.75 {
		t.Fatalf("AvgQuality = %v, want 0.75", stats.AvgQuality)
	}
	if stats.FailureRate != 0.5 {
		t.Fatalf("FailureRate = %v, want 0.5", stats.FailureRate)
	}
	if stats.RecentRateLimits != 1 {
		t.Fatalf("RecentRateLimits = %d, want 1", stats.RecentRateLimits)
	}
	if stats.PrimaryUsageRatio != 0.5 {
		t.Fatalf("PrimaryUsageRatio = %v, want 0.5", stats.PrimaryUsageRatio)
	}
}

func TestSelectMode_StabilizeOnLowQuality(t *testing.T) {
	stats := Stats{AvgQuality: 0.5, FailureRate: 0, RecentRateLimits: 0}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeStabilize {
		t.Fatalf("mode = %s, want stabilize", got)
	}
}

func TestSelectMode_StabilizeOnHighFailureRate(t *testing.T) {
	stats := Stats{AvgQuality: 0.95, FailureRate: 0.3, RecentRateLimits: 0}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeStabilize {
		t.Fatalf("mode = %s, want stabilize", got)
	}
}

func TestSelectMode_StabilizeOnRateLimitBurst(t *testing.T) {
	stats := Stats{AvgQuality: 0.95, FailureRate: 0, RecentRateLimits: 4}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeStabilize {
		t.Fatalf("mode = %s, want stabilize", got)
	}
}

func TestSelectMode_AccelerateWhenThresholdsClear(t *testing.T) {
	stats := Stats{AvgQuality: 0.95, FailureRate: 0.05, RecentRateLimits: 0, PrimaryUsageRatio: 0.6}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeAccelerate {
		t.Fatalf("mode = %s, want accelerate", got)
	}
}

func TestSelectMode_BalanceOtherwise(t *testing.T) {
	stats := Stats{AvgQuality: 0.87, FailureRate: 0.15, RecentRateLimits: 1, PrimaryUsageRatio: 0.3}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeBalance {
		t.Fatalf("mode = %s, want balance", got)
	}
}

func TestSelectMode_StabilizeTakesPriorityOverAccelerate(t *testing.T) {
	// Quality clears the accelerate floor but failure rate also clears
	// the stabilize ceiling: stabilize must win.
	stats := Stats{AvgQuality: 0.95, FailureRate: 0.25, RecentRateLimits: 0, PrimaryUsageRatio: 0.9}
	if got := SelectMode(stats, DefaultThresholds()); got != ModeStabilize {
		t.Fatalf("mode = %s, want stabilize to take priority", got)
	}
}

func TestWindow_ComputeEmptyWindow(t *testing.T) {
	w := NewWindow(10)
	stats := w.Compute("claude")
	if stats.Count != 0 {
		t.Fatalf("Count = %d, want 0", stats.Count)
	}
}

func TestPhaseToOutcome_MapsTerminalStatusesToSuccess(t *testing.T) {
	done := PhaseToOutcome("done", 0.9, time.Minute, "claude", "sonnet", false)
	if !done.Success {
		t.Fatalf("expected done status to map to success")
	}
	blocked := PhaseToOutcome("blocked", 0.1, time.Minute, "claude", "sonnet", false)
	if blocked.Success {
		t.Fatalf("expected blocked status to map to failure")
	}
}

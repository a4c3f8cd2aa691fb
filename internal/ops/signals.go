package ops

import (
	"sync"
	"time"
)

// SignalKind names a maintenance signal the Operations Manager can
// raise. Raising one does not gate execution — it is observability
// only, per spec.md §4.9's closing sentence.
type SignalKind string

const (
	SignalBlockedTasks  SignalKind = "blocked_tasks"
	SignalUnderutilised SignalKind = "underutilised"
)

// blockedTasksRatioFloor is the fraction of blocked tasks that triggers
// the blocked_tasks signal.
const blockedTasksRatioFloor = 0.2

// signalRateLimit matches the monitor's own periodic-check cadence
// idiom (internal/diagnostics.ResourceMonitor) but adds an explicit
// per-signal cooldown, since spec.md calls for emission "rate-limited to
// once per 5 minutes" rather than once per check tick.
const signalRateLimit = 5 * time.Minute

// signalGate tracks, per signal kind, the last time it was emitted, so
// a caller invoking Evaluate on every tick still only surfaces a signal
// at most once per cooldown window.
type signalGate struct {
	mu         sync.Mutex
	lastEmitted map[SignalKind]time.Time
	now        func() time.Time
}

func newSignalGate(now func() time.Time) *signalGate {
	if now == nil {
		now = time.Now
	}
	return &signalGate{lastEmitted: make(map[SignalKind]time.Time), now: now}
}

// allow reports whether kind may fire now, and if so records the
// emission time.
func (g *signalGate) allow(kind SignalKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.lastEmitted[kind]; ok && now.Sub(last) < signalRateLimit {
		return false
	}
	g.lastEmitted[kind] = now
	return true
}

// QueueState is the minimal roadmap shape the signal evaluator needs:
// counts rather than whole Task objects, so callers don't need to
// depend on internal/core or internal/scheduler just to report signals.
type QueueState struct {
	TotalTasks      int
	BlockedTasks    int
	ReadyQueueLen   int
	AvailableAgents int
}

// evaluateSignals returns every maintenance signal whose condition holds
// and whose rate-limit cooldown has elapsed.
func evaluateSignals(gate *signalGate, q QueueState) []SignalKind {
	var fired []SignalKind
	if q.TotalTasks > 0 && float64(q.BlockedTasks)/float64(q.TotalTasks) > blockedTasksRatioFloor {
		if gate.allow(SignalBlockedTasks) {
			fired = append(fired, SignalBlockedTasks)
		}
	}
	if q.ReadyQueueLen < q.AvailableAgents {
		if gate.allow(SignalUnderutilised) {
			fired = append(fired, SignalUnderutilised)
		}
	}
	return fired
}

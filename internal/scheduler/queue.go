package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// PriorityProfile is the scoring recipe the Operations Manager swaps in
// and out via SetPriorityProfile: status_weight + complexity_bias *
// complexity_score + staleness_bias * age_in_queue. Higher scores run
// first.
type PriorityProfile struct {
	StatusWeight   map[core.TaskStatus]float64
	ComplexityBias float64
	StalenessBias  float64
}

// DefaultPriorityProfile favors needs_review over needs_improvement over
// pending; blocked and done are excluded from readiness entirely, but
// carry negative weights here in case a caller scores them directly.
func DefaultPriorityProfile() PriorityProfile {
	return PriorityProfile{
		StatusWeight: map[core.TaskStatus]float64{
			core.TaskStatusNeedsReview:      30,
			core.TaskStatusNeedsImprovement: 20,
			core.TaskStatusPending:          10,
			core.TaskStatusBlocked:          -10,
			core.TaskStatusDone:             -100,
		},
		ComplexityBias: 1.0,
		StalenessBias:  0.1,
	}
}

// Scheduler maintains a priority queue of ready tasks over a DAG.
type Scheduler struct {
	dag *DAGBuilder

	mu        sync.Mutex
	firstSeen map[core.TaskID]time.Time

	profile atomic.Value // PriorityProfile

	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithPriorityProfile sets the initial scoring profile.
func WithPriorityProfile(p PriorityProfile) Option {
	return func(s *Scheduler) { s.profile.Store(p) }
}

// NewScheduler creates a Scheduler over the given DAG.
func NewScheduler(dag *DAGBuilder, opts ...Option) *Scheduler {
	s := &Scheduler{
		dag:       dag,
		firstSeen: make(map[core.TaskID]time.Time),
		now:       time.Now,
	}
	s.profile.Store(DefaultPriorityProfile())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPriorityProfile atomically replaces the scoring profile. Safe to
// call concurrently with Ready.
func (s *Scheduler) SetPriorityProfile(p PriorityProfile) {
	s.profile.Store(p)
}

// Profile returns the active scoring profile.
func (s *Scheduler) Profile() PriorityProfile {
	return s.profile.Load().(PriorityProfile)
}

// Ready returns every ready task in priority order, highest score first.
// Ties break by queue-entry time (earliest first), then by task ID for
// stability.
func (s *Scheduler) Ready(completed map[core.TaskID]bool) []*core.Task {
	tasks := s.dag.GetReadyTasks(completed)
	now := s.now()

	s.mu.Lock()
	for _, t := range tasks {
		if _, ok := s.firstSeen[t.ID]; !ok {
			s.firstSeen[t.ID] = now
		}
	}
	firstSeen := make(map[core.TaskID]time.Time, len(s.firstSeen))
	for k, v := range s.firstSeen {
		firstSeen[k] = v
	}
	s.mu.Unlock()

	profile := s.Profile()
	scores := make(map[core.TaskID]float64, len(tasks))
	for _, t := range tasks {
		scores[t.ID] = s.score(t, profile, firstSeen[t.ID], now)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] > scores[b.ID]
		}
		if !firstSeen[a.ID].Equal(firstSeen[b.ID]) {
			return firstSeen[a.ID].Before(firstSeen[b.ID])
		}
		return a.ID < b.ID
	})

	return tasks
}

// Next returns the single highest-priority ready task, if any.
func (s *Scheduler) Next(completed map[core.TaskID]bool) (*core.Task, bool) {
	ready := s.Ready(completed)
	if len(ready) == 0 {
		return nil, false
	}
	return ready[0], true
}

func (s *Scheduler) score(t *core.Task, profile PriorityProfile, enteredQueue, now time.Time) float64 {
	weight := profile.StatusWeight[t.Status]
	age := now.Sub(enteredQueue).Seconds()
	return weight + profile.ComplexityBias*t.ComplexityScore + profile.StalenessBias*age
}

// Forget removes a task's queue-entry bookkeeping, called once it leaves
// the ready pool for good (claimed, blocked, or terminal).
func (s *Scheduler) Forget(id core.TaskID) {
	s.mu.Lock()
	delete(s.firstSeen, id)
	s.mu.Unlock()
}

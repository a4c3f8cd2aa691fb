package core

import (
	"fmt"
	"time"
)

// RoadmapID uniquely identifies a roadmap run.
type RoadmapID string

// RoadmapStatus represents the current state of a roadmap.
type RoadmapStatus string

const (
	RoadmapStatusPending   RoadmapStatus = "pending"
	RoadmapStatusRunning   RoadmapStatus = "running"
	RoadmapStatusPaused    RoadmapStatus = "paused"
	RoadmapStatusCompleted RoadmapStatus = "completed"
	RoadmapStatusFailed    RoadmapStatus = "failed"
	RoadmapStatusAborted   RoadmapStatus = "aborted"
)

// Roadmap represents a complete orchestration run: a hierarchical tree of
// tasks (epics containing milestones containing groups containing tasks,
// plus remediation tasks inserted by the quality gate) advancing through
// the shared phase lifecycle.
type Roadmap struct {
	ID             RoadmapID
	Status         RoadmapStatus
	Goal           string
	Tasks          map[TaskID]*Task
	TaskOrder      []TaskID
	Policy         *Policy
	TotalTokensIn  int
	TotalTokensOut int
	TotalCostUSD   float64
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Error          string
}

// Policy captures the complete orchestration recipe for a roadmap: phase
// timeouts, critic thresholds, retry ceilings and operating mode. It plays
// the role the teacher's Blueprint played for a single chat workflow,
// generalized to a roadmap's full task tree.
type Policy struct {
	OperatingMode string               `json:"operating_mode"` // balance | stabilize | accelerate
	Phases        map[Phase]PhaseLimit `json:"phases"`
	Critic        CriticPolicy         `json:"critic"`
	MaxRetries    int                  `json:"max_retries"`
	Timeout       time.Duration        `json:"timeout"`
	DryRun        bool                 `json:"dry_run"`
}

// PhaseLimit holds the timeout budget for a single phase.
type PhaseLimit struct {
	Timeout time.Duration `json:"timeout"`
}

// CriticPolicy configures the quality gate's multi-dimensional consensus
// evaluation.
type CriticPolicy struct {
	Enabled             bool               `json:"enabled"`
	Threshold           float64            `json:"threshold"`
	DimensionWeights    map[string]float64 `json:"dimension_weights,omitempty"`
	MinRounds           int                `json:"min_rounds"`
	MaxRounds           int                `json:"max_rounds"`
	WarningThreshold    float64            `json:"warning_threshold"`
	StagnationThreshold float64            `json:"stagnation_threshold"`
}

// NewRoadmap creates a new roadmap instance.
func NewRoadmap(id RoadmapID, goal string, policy *Policy) *Roadmap {
	if policy == nil {
		policy = &Policy{
			OperatingMode: "balance",
			Critic:        CriticPolicy{Enabled: true, Threshold: 0.75},
			MaxRetries:    3,
			Timeout:       time.Hour,
		}
	}
	return &Roadmap{
		ID:        id,
		Status:    RoadmapStatusPending,
		Goal:      goal,
		Tasks:     make(map[TaskID]*Task),
		TaskOrder: make([]TaskID, 0),
		Policy:    policy,
		CreatedAt: time.Now(),
	}
}

// AddTask adds a task to the roadmap.
func (r *Roadmap) AddTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if _, exists := r.Tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	r.Tasks[task.ID] = task
	r.TaskOrder = append(r.TaskOrder, task.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Roadmap) GetTask(id TaskID) (*Task, bool) {
	task, ok := r.Tasks[id]
	return task, ok
}

// Children returns the direct children of a parent task (epic/milestone/
// group), in roadmap order.
func (r *Roadmap) Children(parent TaskID) []*Task {
	var children []*Task
	for _, id := range r.TaskOrder {
		if task := r.Tasks[id]; task.ParentID == parent {
			children = append(children, task)
		}
	}
	return children
}

// TasksByKind returns all tasks of a given kind.
func (r *Roadmap) TasksByKind(kind TaskKind) []*Task {
	var tasks []*Task
	for _, id := range r.TaskOrder {
		if task := r.Tasks[id]; task.Kind == kind {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// CompletedTasks returns a set of task IDs in the done state.
func (r *Roadmap) CompletedTasks() map[TaskID]bool {
	completed := make(map[TaskID]bool)
	for id, task := range r.Tasks {
		if task.Status == TaskStatusDone {
			completed[id] = true
		}
	}
	return completed
}

// ReadyTasks returns pending tasks whose dependencies are all satisfied.
func (r *Roadmap) ReadyTasks() []*Task {
	completed := r.CompletedTasks()
	var ready []*Task
	for _, id := range r.TaskOrder {
		task := r.Tasks[id]
		if task.IsReady(completed) {
			ready = append(ready, task)
		}
	}
	return ready
}

// UpdateMetrics recalculates aggregated token and cost totals from leaf
// tasks.
func (r *Roadmap) UpdateMetrics() {
	r.TotalTokensIn = 0
	r.TotalTokensOut = 0
	r.TotalCostUSD = 0
	for _, task := range r.Tasks {
		r.TotalTokensIn += task.TokensIn
		r.TotalTokensOut += task.TokensOut
		r.TotalCostUSD += task.CostUSD
	}
}

// Progress returns the completion percentage across all leaf (non-group,
// non-epic, non-milestone) tasks.
func (r *Roadmap) Progress() float64 {
	var total, done int
	for _, task := range r.Tasks {
		if task.Kind == KindEpic || task.Kind == KindMilestone || task.Kind == KindGroup {
			continue
		}
		total++
		if task.Status == TaskStatusDone || task.Status == TaskStatusCancelled {
			done++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// Start transitions the roadmap to running.
func (r *Roadmap) Start() error {
	if r.Status != RoadmapStatusPending && r.Status != RoadmapStatusPaused {
		return fmt.Errorf("cannot start roadmap in %s state", r.Status)
	}
	r.Status = RoadmapStatusRunning
	if r.StartedAt == nil {
		now := time.Now()
		r.StartedAt = &now
	}
	return nil
}

// Pause transitions the roadmap to paused.
func (r *Roadmap) Pause() error {
	if r.Status != RoadmapStatusRunning {
		return fmt.Errorf("cannot pause roadmap in %s state", r.Status)
	}
	r.Status = RoadmapStatusPaused
	return nil
}

// Resume transitions the roadmap from paused back to running.
func (r *Roadmap) Resume() error {
	if r.Status != RoadmapStatusPaused {
		return fmt.Errorf("cannot resume roadmap in %s state", r.Status)
	}
	r.Status = RoadmapStatusRunning
	return nil
}

// Complete transitions the roadmap to completed.
func (r *Roadmap) Complete() error {
	if r.Status != RoadmapStatusRunning {
		return fmt.Errorf("cannot complete roadmap in %s state", r.Status)
	}
	r.Status = RoadmapStatusCompleted
	now := time.Now()
	r.CompletedAt = &now
	r.UpdateMetrics()
	return nil
}

// Fail transitions the roadmap to failed.
func (r *Roadmap) Fail(err error) error {
	r.Status = RoadmapStatusFailed
	r.Error = err.Error()
	now := time.Now()
	r.CompletedAt = &now
	r.UpdateMetrics()
	return nil
}

// Abort transitions the roadmap to aborted.
func (r *Roadmap) Abort(reason string) error {
	r.Status = RoadmapStatusAborted
	r.Error = reason
	now := time.Now()
	r.CompletedAt = &now
	r.UpdateMetrics()
	return nil
}

// Duration returns the roadmap's execution duration.
func (r *Roadmap) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(*r.StartedAt)
}

// IsTerminal returns true if the roadmap is in a terminal state.
func (r *Roadmap) IsTerminal() bool {
	return r.Status == RoadmapStatusCompleted ||
		r.Status == RoadmapStatusFailed ||
		r.Status == RoadmapStatusAborted
}

// Validate checks roadmap invariants.
func (r *Roadmap) Validate() error {
	if r.ID == "" {
		return &DomainError{
			Category: ErrCatValidation,
			Code:     "ROADMAP_ID_REQUIRED",
			Message:  "roadmap ID cannot be empty",
		}
	}
	if r.Goal == "" {
		return &DomainError{
			Category: ErrCatValidation,
			Code:     "ROADMAP_GOAL_REQUIRED",
			Message:  "roadmap goal cannot be empty",
		}
	}
	for id, task := range r.Tasks {
		if task.ParentID == "" {
			continue
		}
		if _, ok := r.Tasks[task.ParentID]; !ok {
			return &DomainError{
				Category: ErrCatIntegrity,
				Code:     CodeCorruptRoadmap,
				Message:  fmt.Sprintf("task %s references missing parent %s", id, task.ParentID),
			}
		}
	}
	return nil
}

package core

import (
	"fmt"
	"time"
)

// TaskID uniquely identifies a task within a roadmap.
type TaskID string

// TaskKind distinguishes the granularity of a roadmap node.
type TaskKind string

const (
	KindEpic        TaskKind = "epic"
	KindMilestone   TaskKind = "milestone"
	KindTask        TaskKind = "task"
	KindGroup       TaskKind = "group"
	KindRemediation TaskKind = "remediation"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending          TaskStatus = "pending"
	TaskStatusInProgress       TaskStatus = "in_progress"
	TaskStatusNeedsReview      TaskStatus = "needs_review"
	TaskStatusNeedsImprovement TaskStatus = "needs_improvement"
	TaskStatusBlocked          TaskStatus = "blocked"
	TaskStatusDone             TaskStatus = "done"
	TaskStatusCancelled        TaskStatus = "cancelled"
)

// Task represents a unit of work in the orchestration roadmap.
type Task struct {
	ID           TaskID
	ParentID     TaskID
	Kind         TaskKind
	Phase        Phase
	GateRequired bool
	Name         string
	Description  string
	Status       TaskStatus
	CLI          string // Agent identifier to use (claude, gemini, codex, copilot...)
	Model        string // Specific model override
	Dependencies []TaskID
	Outputs      []Artifact
	TokensIn     int
	TokensOut    int
	CostUSD      float64
	Retries      int
	MaxRetries   int
	Attempts     map[Phase]int // per-phase attempt count, counts against the retry ceiling
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Error        string
	BlockedReason string

	// ComplexityScore (0-10) and the named factors that produced it drive
	// model-router tier selection.
	ComplexityScore   float64
	ComplexityFactors map[string]float64
}

// NewTask creates a new task with required fields.
func NewTask(id TaskID, name string, phase Phase) *Task {
	return &Task{
		ID:                id,
		Kind:              KindTask,
		Phase:             phase,
		Name:              name,
		Status:            TaskStatusPending,
		MaxRetries:        3,
		Attempts:          make(map[Phase]int),
		ComplexityFactors: make(map[string]float64),
	}
}

// WithDescription sets the task description.
func (t *Task) WithDescription(desc string) *Task {
	t.Description = desc
	return t
}

// WithCLI sets the agent to use.
func (t *Task) WithCLI(cli string) *Task {
	t.CLI = cli
	return t
}

// WithModel sets the model override.
func (t *Task) WithModel(model string) *Task {
	t.Model = model
	return t
}

// WithDependencies sets the task dependencies.
func (t *Task) WithDependencies(deps ...TaskID) *Task {
	t.Dependencies = deps
	return t
}

// WithMaxRetries sets the maximum retry count.
func (t *Task) WithMaxRetries(maxRetries int) *Task {
	t.MaxRetries = maxRetries
	return t
}

// WithParent sets the parent task (epic/milestone/group) this task belongs to.
func (t *Task) WithParent(parent TaskID) *Task {
	t.ParentID = parent
	return t
}

// WithKind sets the roadmap node kind.
func (t *Task) WithKind(kind TaskKind) *Task {
	t.Kind = kind
	return t
}

// IsReady returns true if the task is pending and all dependencies are completed.
func (t *Task) IsReady(completed map[TaskID]bool) bool {
	if t.Status != TaskStatusPending {
		return false
	}
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// MarkInProgress transitions the task into active execution.
func (t *Task) MarkInProgress() error {
	switch t.Status {
	case TaskStatusPending, TaskStatusBlocked, TaskStatusNeedsImprovement:
	default:
		return fmt.Errorf("cannot start task in %s state", t.Status)
	}
	t.Status = TaskStatusInProgress
	t.BlockedReason = ""
	if t.StartedAt == nil {
		now := time.Now()
		t.StartedAt = &now
	}
	return nil
}

// MarkNeedsReview transitions a task from active execution to awaiting review.
func (t *Task) MarkNeedsReview() error {
	if t.Status != TaskStatusInProgress {
		return fmt.Errorf("cannot move to needs_review from %s state", t.Status)
	}
	t.Status = TaskStatusNeedsReview
	return nil
}

// MarkNeedsImprovement records a quality-gate finding that forces a
// remediation loop before the task can be reviewed again.
func (t *Task) MarkNeedsImprovement(reason string) error {
	switch t.Status {
	case TaskStatusInProgress, TaskStatusNeedsReview:
	default:
		return fmt.Errorf("cannot move to needs_improvement from %s state", t.Status)
	}
	t.Status = TaskStatusNeedsImprovement
	t.Error = reason
	return nil
}

// MarkBlocked transitions the task to blocked, recording why. A blocked
// task must be explicitly unblocked by an external signal before it can
// resume.
func (t *Task) MarkBlocked(reason string) error {
	if t.Status == TaskStatusDone || t.Status == TaskStatusCancelled {
		return fmt.Errorf("cannot block task in terminal state %s", t.Status)
	}
	t.Status = TaskStatusBlocked
	t.BlockedReason = reason
	return nil
}

// Unblock clears a blocked task back to in_progress once the external
// condition (human input, upstream retry, freed resource) clears.
func (t *Task) Unblock() error {
	if t.Status != TaskStatusBlocked {
		return fmt.Errorf("cannot unblock task in %s state", t.Status)
	}
	t.BlockedReason = ""
	t.Status = TaskStatusInProgress
	return nil
}

// MarkDone transitions the task to its terminal success state.
func (t *Task) MarkDone(outputs []Artifact) error {
	if t.Status != TaskStatusNeedsReview {
		return fmt.Errorf("cannot complete task in %s state", t.Status)
	}
	t.Status = TaskStatusDone
	t.Outputs = outputs
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkCancelled transitions the task to cancelled from any non-terminal state.
func (t *Task) MarkCancelled(reason string) error {
	if t.IsTerminal() {
		return fmt.Errorf("cannot cancel task in terminal state %s", t.Status)
	}
	t.Status = TaskStatusCancelled
	t.Error = reason
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// RecordAttempt increments the attempt counter for a phase and returns the
// new count. Callers compare this against a configured retry ceiling.
func (t *Task) RecordAttempt(phase Phase) int {
	if t.Attempts == nil {
		t.Attempts = make(map[Phase]int)
	}
	t.Attempts[phase]++
	return t.Attempts[phase]
}

// AttemptsForPhase returns the number of attempts recorded for a phase.
func (t *Task) AttemptsForPhase(phase Phase) int {
	return t.Attempts[phase]
}

// CanRetry returns true if the task can return to active execution.
func (t *Task) CanRetry() bool {
	return t.Status == TaskStatusNeedsImprovement && t.Retries < t.MaxRetries
}

// Reset prepares the task for retry after a forced-remediation cycle.
func (t *Task) Reset() error {
	if !t.CanRetry() {
		return fmt.Errorf("cannot retry task: retries=%d, max=%d", t.Retries, t.MaxRetries)
	}
	t.Retries++
	t.Status = TaskStatusInProgress
	t.Error = ""
	return nil
}

// Validate checks task invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return &DomainError{
			Category: ErrCatValidation,
			Code:     "TASK_ID_REQUIRED",
			Message:  "task ID cannot be empty",
		}
	}
	if t.Name == "" {
		return &DomainError{
			Category: ErrCatValidation,
			Code:     "TASK_NAME_REQUIRED",
			Message:  "task name cannot be empty",
		}
	}
	return nil
}

// Duration returns the task execution duration.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusCancelled
}

// IsSuccess returns true if the task completed successfully.
func (t *Task) IsSuccess() bool {
	return t.Status == TaskStatusDone
}

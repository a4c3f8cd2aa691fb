// Package supervisor owns a roadmap run end to end: acquiring the
// single-instance lock, preflighting the host, running the tick-driven
// dispatch loop that pulls ready tasks and hands them to a Dispatcher,
// writing a heartbeat so a crashed run is distinguishable from a live one,
// and draining cleanly on cancellation or signal.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autopilot-dev/autopilot/internal/control"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/ops"
	"github.com/autopilot-dev/autopilot/internal/scheduler"
)

// Dispatcher runs one task through its current phase to completion: agent
// claim, tool execution, evidence assembly, gate and critic evaluation, and
// the resulting phase-machine transition. Supervisor owns scheduling and
// lifecycle; Dispatcher owns what actually happens to a single task. The
// returned Outcome feeds the Operations Manager's mode selection.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *core.Task) (ops.Outcome, error)
}

// Scheduler is the slice of scheduler.Scheduler the main loop needs.
type Scheduler interface {
	Next(completed map[core.TaskID]bool) (*core.Task, bool)
	Forget(id core.TaskID)
}

// WIP is the slice of scheduler.WIPController the main loop needs.
type WIP interface {
	CanAccept() bool
	Reserve(ctx context.Context, taskID core.TaskID, workerID string) (bool, error)
	Release(taskID core.TaskID)
	ReleaseAll()
}

// StateStore is the slice of core.StateManager plus the heartbeat/lock
// extensions store.FileStore adds that the supervisor's lifecycle needs.
type StateStore interface {
	core.StateManager
	Heartbeater
}

// Config configures one Supervisor run.
type Config struct {
	RoadmapID        core.RoadmapID
	WorkspaceRoot    string
	HeartbeatInterval time.Duration
	SafetyInterval    time.Duration
	DispatchInterval  time.Duration
	Safety            SafetyThresholds
	MaxConcurrent     int
}

// DefaultConfig fills in the intervals SPEC_FULL names: a 30s heartbeat, a
// 60s safety sweep, and a 2s dispatch-loop pull of newly-ready work.
func DefaultConfig(roadmapID core.RoadmapID, workspaceRoot string) Config {
	return Config{
		RoadmapID:         roadmapID,
		WorkspaceRoot:     workspaceRoot,
		HeartbeatInterval: 30 * time.Second,
		SafetyInterval:    60 * time.Second,
		DispatchInterval:  2 * time.Second,
		Safety:            DefaultSafetyThresholds(),
		MaxConcurrent:     4,
	}
}

// Supervisor ties the scheduler, WIP controller, dispatcher, operations
// manager, and control plane into one process lifecycle.
type Supervisor struct {
	cfg        Config
	store      StateStore
	scheduler  Scheduler
	wip        WIP
	dispatcher Dispatcher
	ops        *ops.Manager
	plane      *control.Plane
	audit      core.AuditRecorder
	logger     *slog.Logger

	inFlight map[core.TaskID]chan struct{}
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

func WithAuditRecorder(a core.AuditRecorder) Option { return func(s *Supervisor) { s.audit = a } }
func WithLogger(l *slog.Logger) Option              { return func(s *Supervisor) { s.logger = l } }
func WithOperationsManager(m *ops.Manager) Option   { return func(s *Supervisor) { s.ops = m } }

// New builds a Supervisor for one roadmap run.
func New(cfg Config, store StateStore, sched Scheduler, wip WIP, dispatcher Dispatcher, plane *control.Plane, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:        cfg,
		store:      store,
		scheduler:  sched,
		wip:        wip,
		dispatcher: dispatcher,
		plane:      plane,
		logger:     slog.Default(),
		inFlight:   make(map[core.TaskID]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.DispatchInterval <= 0 {
		s.cfg.DispatchInterval = 2 * time.Second
	}
	if s.cfg.HeartbeatInterval <= 0 {
		s.cfg.HeartbeatInterval = 30 * time.Second
	}
	if s.cfg.SafetyInterval <= 0 {
		s.cfg.SafetyInterval = 60 * time.Second
	}
	if s.cfg.MaxConcurrent <= 0 {
		s.cfg.MaxConcurrent = 1
	}
	if s.ops == nil {
		s.ops = ops.New()
	}
	return s
}

// Run acquires the run lock, preflights the host, then drives the dispatch
// loop until ctx is cancelled, the plane is cancelled, or the roadmap has no
// more runnable work. It always releases the lock and any held WIP slots
// before returning, even on error.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := Preflight(s.cfg.WorkspaceRoot, s.cfg.Safety); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	if err := s.store.AcquireLock(ctx); err != nil {
		return fmt.Errorf("supervisor: acquire lock: %w", err)
	}
	defer func() {
		if err := s.store.ReleaseLock(context.Background()); err != nil {
			s.logger.Error("release lock failed", "error", err)
		}
	}()
	defer s.wip.ReleaseAll()

	state, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: load state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("supervisor: no state found for roadmap %s", s.cfg.RoadmapID)
	}

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go heartbeatLoop(monitorCtx, s.store, s.cfg.RoadmapID, s.cfg.HeartbeatInterval, func(err error) {
		s.logger.Warn("heartbeat write failed", "error", err)
	})
	go newSafetyMonitor(s.cfg.WorkspaceRoot, s.cfg.Safety, s.cfg.SafetyInterval, s.audit, s.cfg.RoadmapID).run(monitorCtx)

	s.record(ctx, core.AuditKindSupervisorEvent, "supervisor started")
	err = s.dispatchLoop(ctx, state)
	s.record(ctx, core.AuditKindSupervisorEvent, "supervisor stopped")
	return err
}

// dispatchLoop is the tick-driven pull-and-react loop, in the shape of the
// teacher's kanban.Engine.runLoop: a ticker drives periodic pulls of ready
// work, the control plane's retry queue reacts to out-of-band signals, and
// Pause/Cancel gate new dispatch without killing in-flight tasks.
func (s *Supervisor) dispatchLoop(ctx context.Context, state *core.RoadmapState) error {
	ticker := time.NewTicker(s.cfg.DispatchInterval)
	defer ticker.Stop()

	completed := completedSet(state)
	results := make(chan dispatchResult, s.cfg.MaxConcurrent)
	active := 0

	for {
		if err := s.plane.CheckCancelled(); err != nil {
			s.drain(active, results)
			return err
		}
		if err := s.plane.WaitIfPaused(ctx); err != nil {
			s.drain(active, results)
			return err
		}

		select {
		case <-ctx.Done():
			s.drain(active, results)
			return ctx.Err()

		case id := <-s.plane.RetryQueue():
			s.scheduler.Forget(id)

		case res := <-results:
			active--
			delete(s.inFlight, res.task.ID)
			s.wip.Release(res.task.ID)
			if res.err == nil {
				completed[res.task.ID] = true
			}
			s.ops.RecordOutcome(ctx, res.outcome)

		case <-ticker.C:
			if s.plane.IsPaused() {
				continue
			}
			for active < s.cfg.MaxConcurrent && s.wip.CanAccept() {
				task, ok := s.scheduler.Next(completed)
				if !ok {
					break
				}
				reserved, err := s.wip.Reserve(ctx, task.ID, "supervisor")
				if err != nil || !reserved {
					break
				}
				active++
				s.dispatchOne(ctx, task, results)
			}
			if active == 0 {
				if _, ok := s.scheduler.Next(completed); !ok {
					return nil
				}
			}
		}
	}
}

type dispatchResult struct {
	task    *core.Task
	outcome ops.Outcome
	err     error
}

func (s *Supervisor) dispatchOne(ctx context.Context, task *core.Task, results chan<- dispatchResult) {
	done := make(chan struct{})
	s.inFlight[task.ID] = done
	go func() {
		defer close(done)
		outcome, err := s.dispatcher.Dispatch(ctx, task)
		if err != nil {
			s.logger.Error("task dispatch failed", "task", task.ID, "error", err)
		}
		select {
		case results <- dispatchResult{task: task, outcome: outcome, err: err}:
		case <-ctx.Done():
		}
	}()
}

// drain waits for in-flight dispatches to report back (or the context to be
// already dead) before Run unwinds, so the lock and WIP release below it
// see an accurate picture of what's still running.
func (s *Supervisor) drain(active int, results <-chan dispatchResult) {
	for active > 0 {
		select {
		case res := <-results:
			active--
			delete(s.inFlight, res.task.ID)
			s.wip.Release(res.task.ID)
		case <-time.After(5 * time.Second):
			return
		}
	}
}

func completedSet(state *core.RoadmapState) map[core.TaskID]bool {
	completed := make(map[core.TaskID]bool, len(state.Tasks))
	for id, t := range state.Tasks {
		if t.Status == core.TaskStatusDone {
			completed[id] = true
		}
	}
	return completed
}

func (s *Supervisor) record(ctx context.Context, kind, message string) {
	if s.audit == nil {
		return
	}
	event := core.NewAuditEvent(kind, message).WithRoadmap(s.cfg.RoadmapID)
	_, _ = s.audit.AppendAudit(ctx, event)
}

var _ Scheduler = (*scheduler.Scheduler)(nil)
var _ WIP = (*scheduler.WIPController)(nil)

// ErrNoRunnableWork is returned by callers that want to distinguish a clean
// drain from an actual failure; Run itself returns nil for a clean finish.
var ErrNoRunnableWork = errors.New("supervisor: no runnable work remains")

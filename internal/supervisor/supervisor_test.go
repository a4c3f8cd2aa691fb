package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/autopilot-dev/autopilot/internal/control"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/ops"
)

type fakeStore struct {
	mu          sync.Mutex
	state       *core.RoadmapState
	locked      bool
	heartbeats  int
	releaseErr  error
}

func (f *fakeStore) Save(ctx context.Context, state *core.RoadmapState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	return nil
}

func (f *fakeStore) Load(ctx context.Context) (*core.RoadmapState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeStore) AcquireLock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = true
	return nil
}

func (f *fakeStore) ReleaseLock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	return f.releaseErr
}

func (f *fakeStore) Exists() bool { return true }

func (f *fakeStore) Backup(ctx context.Context) error { return nil }

func (f *fakeStore) Restore(ctx context.Context) (*core.RoadmapState, error) { return f.state, nil }

func (f *fakeStore) UpdateHeartbeat(ctx context.Context, id core.RoadmapID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

// fakeScheduler mirrors the real scheduler.Scheduler's non-mutating Next:
// readiness is derived from the completed set on every call, not popped
// from a queue. Duplicate dispatch of an in-flight task is prevented by
// the WIP controller's idempotent Reserve, exactly as in production.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []*core.Task
}

func (f *fakeScheduler) Next(completed map[core.TaskID]bool) (*core.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.pending {
		if completed[t.ID] {
			continue
		}
		return t, true
	}
	return nil, false
}

func (f *fakeScheduler) Forget(id core.TaskID) {}

type fakeWIP struct {
	mu       sync.Mutex
	reserved map[core.TaskID]bool
}

func newFakeWIP() *fakeWIP { return &fakeWIP{reserved: make(map[core.TaskID]bool)} }

func (w *fakeWIP) CanAccept() bool { return true }

func (w *fakeWIP) Reserve(ctx context.Context, taskID core.TaskID, workerID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reserved[taskID] {
		return false, nil
	}
	w.reserved[taskID] = true
	return true, nil
}

func (w *fakeWIP) Release(taskID core.TaskID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.reserved, taskID)
}

func (w *fakeWIP) ReleaseAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reserved = make(map[core.TaskID]bool)
}

type fakeDispatcher struct {
	dispatched []core.TaskID
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, task *core.Task) (ops.Outcome, error) {
	d.dispatched = append(d.dispatched, task.ID)
	return ops.Outcome{Quality: 1, Success: true}, nil
}

func newTestRoadmapState() *core.RoadmapState {
	return &core.RoadmapState{
		RoadmapID: core.RoadmapID("r1"),
		Tasks:     map[core.TaskID]*core.TaskState{},
	}
}

func TestSupervisor_RunDispatchesReadyTaskThenFinishes(t *testing.T) {
	store := &fakeStore{state: newTestRoadmapState()}
	sched := &fakeScheduler{pending: []*core.Task{core.NewTask(core.TaskID("t1"), "do thing", core.PhaseImplement)}}
	wip := newFakeWIP()
	dispatcher := &fakeDispatcher{}
	plane := control.New()

	cfg := DefaultConfig(core.RoadmapID("r1"), t.TempDir())
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.SafetyInterval = 50 * time.Millisecond
	cfg.DispatchInterval = 10 * time.Millisecond
	sup := New(cfg, store, sched, wip, dispatcher, plane)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sup.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != "t1" {
		t.Fatalf("expected t1 dispatched exactly once, got %v", dispatcher.dispatched)
	}
	if store.locked {
		t.Fatal("expected lock released after Run returns")
	}
}

func TestSupervisor_RunReturnsErrorOnCancel(t *testing.T) {
	store := &fakeStore{state: newTestRoadmapState()}
	sched := &fakeScheduler{}
	wip := newFakeWIP()
	dispatcher := &fakeDispatcher{}
	plane := control.New()
	plane.Cancel()

	cfg := DefaultConfig(core.RoadmapID("r1"), t.TempDir())
	sup := New(cfg, store, sched, wip, dispatcher, plane)

	err := sup.Run(context.Background())
	if err == nil {
		t.Fatal("expected error after Cancel")
	}
	if store.locked {
		t.Fatal("expected lock released after Run returns")
	}
}

func TestSupervisor_RunFailsPreflightOnMissingWorkspace(t *testing.T) {
	store := &fakeStore{state: newTestRoadmapState()}
	sched := &fakeScheduler{}
	wip := newFakeWIP()
	dispatcher := &fakeDispatcher{}
	plane := control.New()

	cfg := DefaultConfig(core.RoadmapID("r1"), "/nonexistent/path/for/autopilot/tests")
	sup := New(cfg, store, sched, wip, dispatcher, plane)

	if err := sup.Run(context.Background()); err == nil {
		t.Fatal("expected preflight error for nonexistent workspace root")
	}
	if store.locked {
		t.Fatal("lock must not be held after a failed preflight")
	}
}

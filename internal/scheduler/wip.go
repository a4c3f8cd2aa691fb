package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// DefaultPerWorkerCap is the default number of tasks a single worker may
// hold reserved simultaneously.
const DefaultPerWorkerCap = 1

// WIPStatus is a snapshot of the controller's occupancy.
type WIPStatus struct {
	Current int
	Limit   int
	Available int
}

// WIPController enforces a global work-in-progress cap plus a per-worker
// cap, with idempotent reservation keyed by task ID: a duplicate Reserve
// for a task already held returns false rather than double-counting.
type WIPController struct {
	global       *semaphore.Weighted
	globalCap    int64
	perWorkerCap int64

	mu          sync.Mutex
	reservedBy  map[core.TaskID]string
	perWorker   map[string]int64
	onRelease   func(core.TaskID)
}

// WIPOption configures a WIPController.
type WIPOption func(*WIPController)

// WithPerWorkerCap overrides the default per-worker reservation cap.
func WithPerWorkerCap(cap int64) WIPOption {
	return func(w *WIPController) { w.perWorkerCap = cap }
}

// WithOnRelease registers a callback invoked after a slot is released,
// so the caller (typically the Supervisor) can re-evaluate readiness and
// pull the next task.
func WithOnRelease(fn func(core.TaskID)) WIPOption {
	return func(w *WIPController) { w.onRelease = fn }
}

// NewWIPController creates a controller with the given global cap.
func NewWIPController(globalCap int64, opts ...WIPOption) *WIPController {
	w := &WIPController{
		global:       semaphore.NewWeighted(globalCap),
		globalCap:    globalCap,
		perWorkerCap: DefaultPerWorkerCap,
		reservedBy:   make(map[core.TaskID]string),
		perWorker:    make(map[string]int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CanAccept reports whether a new reservation would currently succeed.
func (w *WIPController) CanAccept() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.reservedBy)) < w.globalCap
}

// Reserve attempts to reserve a WIP slot for task on behalf of worker.
// It is non-blocking: if no slot is free, or the worker is already at
// its per-worker cap, it returns false without error. A duplicate
// reservation for a task already held (by any worker) also returns
// false, making Reserve idempotent per task ID.
func (w *WIPController) Reserve(ctx context.Context, taskID core.TaskID, workerID string) (bool, error) {
	w.mu.Lock()
	if _, exists := w.reservedBy[taskID]; exists {
		w.mu.Unlock()
		return false, nil
	}
	if w.perWorker[workerID] >= w.perWorkerCap {
		w.mu.Unlock()
		return false, nil
	}
	w.mu.Unlock()

	if !w.global.TryAcquire(1) {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Re-check under lock: another goroutine may have reserved the same
	// task between our first check and acquiring the semaphore.
	if _, exists := w.reservedBy[taskID]; exists {
		w.global.Release(1)
		return false, nil
	}
	w.reservedBy[taskID] = workerID
	w.perWorker[workerID]++
	return true, nil
}

// Release frees the slot held for task, if any, and signals onRelease.
func (w *WIPController) Release(taskID core.TaskID) {
	w.mu.Lock()
	worker, exists := w.reservedBy[taskID]
	if !exists {
		w.mu.Unlock()
		return
	}
	delete(w.reservedBy, taskID)
	w.perWorker[worker]--
	if w.perWorker[worker] <= 0 {
		delete(w.perWorker, worker)
	}
	w.mu.Unlock()

	w.global.Release(1)

	if w.onRelease != nil {
		w.onRelease(taskID)
	}
}

// Status reports current occupancy.
func (w *WIPController) Status() WIPStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	current := len(w.reservedBy)
	return WIPStatus{
		Current:   current,
		Limit:     int(w.globalCap),
		Available: int(w.globalCap) - current,
	}
}

// IsReserved reports whether a task currently holds a slot.
func (w *WIPController) IsReserved(taskID core.TaskID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.reservedBy[taskID]
	return ok
}

// ReleaseAll drops every reservation, for the Supervisor's shutdown drain.
func (w *WIPController) ReleaseAll() {
	w.mu.Lock()
	ids := make([]core.TaskID, 0, len(w.reservedBy))
	for id := range w.reservedBy {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.Release(id)
	}
}

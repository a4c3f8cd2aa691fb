// Package control provides the cooperative pause/resume/cancel signaling
// the Supervisor's main loop and in-flight phase executions coordinate
// through, without any component needing a reference to the others.
package control

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Plane is the single coordination point mutating access is serialised
// through: pause/resume/cancel state, and a retry queue workers drain.
type Plane struct {
	mu        sync.RWMutex
	paused    atomic.Bool
	cancelled atomic.Bool

	retryQueue chan core.TaskID
	pauseCh    chan struct{}
	resumeCh   chan struct{}
}

// New creates a Plane ready to coordinate one Supervisor run.
func New() *Plane {
	return &Plane{
		retryQueue: make(chan core.TaskID, 100),
		pauseCh:    make(chan struct{}),
		resumeCh:   make(chan struct{}),
	}
}

// Pause stops new work from starting; tasks already in flight complete.
func (p *Plane) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused.Load() {
		p.paused.Store(true)
		close(p.pauseCh)
		p.pauseCh = make(chan struct{})
	}
}

// Resume releases every WaitIfPaused call blocked on a prior Pause.
func (p *Plane) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused.Load() {
		p.paused.Store(false)
		close(p.resumeCh)
		p.resumeCh = make(chan struct{})
	}
}

// Cancel marks the run cancelled; CheckCancelled starts reporting it.
func (p *Plane) Cancel() {
	p.cancelled.Store(true)
}

// RetryTask queues a task for out-of-band retry; dropped silently if the
// queue is full, since a dropped retry signal is recovered by the
// Scheduler's own readiness re-evaluation on the next tick.
func (p *Plane) RetryTask(id core.TaskID) {
	select {
	case p.retryQueue <- id:
	default:
	}
}

// RetryQueue exposes the retry channel for the Supervisor's main loop.
func (p *Plane) RetryQueue() <-chan core.TaskID {
	return p.retryQueue
}

// IsPaused reports the current pause state.
func (p *Plane) IsPaused() bool {
	return p.paused.Load()
}

// IsCancelled reports the current cancellation state.
func (p *Plane) IsCancelled() bool {
	return p.cancelled.Load()
}

// WaitIfPaused blocks until Resume is called, ctx is cancelled, or the
// plane was never paused to begin with.
func (p *Plane) WaitIfPaused(ctx context.Context) error {
	if !p.paused.Load() {
		return nil
	}
	p.mu.RLock()
	resumeCh := p.resumeCh
	p.mu.RUnlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-resumeCh:
		return nil
	}
}

// CheckCancelled returns a domain error once Cancel has been called.
func (p *Plane) CheckCancelled() error {
	if p.cancelled.Load() {
		return core.ErrState("CANCELLED", "run cancelled")
	}
	return nil
}

// Status is a point-in-time summary of the plane's state.
type Status struct {
	Paused    bool
	Cancelled bool
	Retries   int
}

// Status reports the plane's current pause/cancel/retry-queue state.
func (p *Plane) Status() Status {
	return Status{
		Paused:    p.paused.Load(),
		Cancelled: p.cancelled.Load(),
		Retries:   len(p.retryQueue),
	}
}

// Package agentpool manages the lifecycle and bookkeeping of the typed
// workers that wrap LLM provider CLIs: claiming and releasing agents,
// tracking per-agent cooldowns and a coordinator role that is promoted
// or demoted on rate-limit signal, and aggregating recent usage so the
// Model Router can rank candidates by more than their sticker price.
package agentpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// claimPollInterval is how often a blocked Claim re-checks for an agent
// freeing up or a cooldown expiring.
const claimPollInterval = 100 * time.Millisecond

// entry is one pool member: the underlying agent plus its claim/cooldown
// state. name is the agent's registry name (its provider identity, e.g.
// "claude"); an agent's "type" for Claim purposes is its name, since in
// this domain a worker's role is exactly which provider it wraps.
type entry struct {
	name     string
	claimed  bool
	cooldown *cooldownTracker
}

// Pool claims and releases agents from an underlying core.AgentRegistry,
// tracks their cooldowns, designates a coordinator, and aggregates usage.
type Pool struct {
	mu          sync.Mutex
	registry    core.AgentRegistry
	entries     map[string]*entry
	coordinator string
	primary     string
	usage       *usageTracker
	audit       core.AuditRecorder
	now         func() time.Time
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithAuditRecorder wires the Evidence & Audit Store so cooldowns and
// coordinator changes are recorded.
func WithAuditRecorder(rec core.AuditRecorder) Option {
	return func(p *Pool) { p.audit = rec }
}

// WithUsageWindow overrides the default trailing-window size (50) used
// for per-agent usage aggregation.
func WithUsageWindow(n int) Option {
	return func(p *Pool) { p.usage = newUsageTracker(n) }
}

// WithPrimary designates which agent name is the primary provider: the
// one whose rate-limit signals trigger coordinator promotion/demotion.
// It also becomes the initial coordinator.
func WithPrimary(name string) Option {
	return func(p *Pool) {
		p.primary = name
		p.coordinator = name
	}
}

// New constructs a Pool over registry, registering one entry per agent
// name already known to it (registry.List()).
func New(registry core.AgentRegistry, opts ...Option) *Pool {
	p := &Pool{
		registry: registry,
		entries:  make(map[string]*entry),
		usage:    newUsageTracker(DefaultUsageWindow),
		now:      time.Now,
	}
	for _, name := range registry.List() {
		p.entries[name] = &entry{name: name, cooldown: newCooldownTracker(DefaultCooldownThreshold)}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.coordinator == "" && len(registry.List()) > 0 {
		p.coordinator = registry.List()[0]
		p.primary = p.coordinator
	}
	return p
}

// Claimed is a handle to an agent obtained through Claim. Callers must
// pass it to Release when done, whether or not the execution succeeded.
type Claimed struct {
	Name  string
	Agent core.Agent
}

// Claim returns an idle, non-cooling-down agent named requiredType, or
// blocks until one becomes available or ctx is cancelled. requiredType
// names a registered agent (e.g. "claude"); passing "" claims any idle,
// eligible agent.
func (p *Pool) Claim(ctx context.Context, requiredType string) (*Claimed, error) {
	for {
		if c, ok := p.tryClaim(requiredType); ok {
			agent, err := p.registry.Get(c.name)
			if err != nil {
				p.Release(c.name, false)
				return nil, fmt.Errorf("constructing agent %s: %w", c.name, err)
			}
			return &Claimed{Name: c.name, Agent: agent}, nil
		}

		select {
		case <-ctx.Done():
			return nil, core.ErrCancelled(fmt.Sprintf("claim(%s) cancelled: %v", requiredType, ctx.Err()))
		case <-time.After(claimPollInterval):
		}
	}
}

func (p *Pool) tryClaim(requiredType string) (*entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, e := range p.entries {
		if requiredType != "" && name != requiredType {
			continue
		}
		e.cooldown.ReleaseIfExpired()
		if e.claimed || e.cooldown.IsCoolingDown() {
			continue
		}
		e.claimed = true
		return e, true
	}
	return nil, false
}

// Release returns a claimed agent to the pool, recording the outcome in
// its cooldown tracker. success is whether the execution it was claimed
// for completed without error.
func (p *Pool) Release(name string, success bool) {
	p.mu.Lock()
	e, ok := p.entries[name]
	p.mu.Unlock()
	if !ok {
		return
	}

	e.claimed = false
	if success {
		e.cooldown.RecordSuccess()
		return
	}
	e.cooldown.RecordFailure()
}

// RecordExecution folds a completed execution's outcome into the
// agent/model pair's usage aggregates, for the Router to consult through
// a ProviderAvailability adapter.
func (p *Pool) RecordExecution(agent, model string, exec Execution) {
	if exec.RecordedAt.IsZero() {
		exec.RecordedAt = p.now()
	}
	p.usage.Record(agent, model, exec)
}

// ReportRateLimit puts agent into cooldown for at least retryAfter,
// emits a cooldown audit event, and promotes a backup coordinator if
// agent currently holds that role — the coordinator must stay available
// for orchestration messages even while its primary provider is rate
// limited.
func (p *Pool) ReportRateLimit(ctx context.Context, agent string, retryAfter time.Duration, reason string) {
	p.mu.Lock()
	e, ok := p.entries[agent]
	p.mu.Unlock()
	if !ok {
		return
	}

	until := p.now().Add(retryAfter)
	e.cooldown.Cooldown(until, reason)
	p.recordEvent(ctx, core.AuditKindAgentCooldown, fmt.Sprintf("%s rate limited: %s", agent, reason), map[string]string{
		"agent":       agent,
		"retry_after": retryAfter.String(),
		"reason":      reason,
	})

	p.mu.Lock()
	isCoordinator := p.coordinator == agent
	p.mu.Unlock()
	if isCoordinator {
		p.promoteBackup(ctx, fmt.Sprintf("coordinator %s rate limited", agent))
	}
}

// ReportContextLimit records that agent hit a context-window limit on
// task. It is surfaced through the audit trail for the Operations
// Manager/Scheduler to act on (e.g. routing the task's remaining phases
// to a larger-context model); the Pool itself does not retry.
func (p *Pool) ReportContextLimit(ctx context.Context, agent string, taskID core.TaskID) {
	p.recordEvent(ctx, core.AuditKindAgentCooldown, fmt.Sprintf("%s hit context limit on task %s", agent, taskID), map[string]string{
		"agent":   agent,
		"task_id": string(taskID),
		"reason":  "context_limit",
	})
}

// PromoteCoordinator explicitly sets name as coordinator, recording
// reason in the audit trail.
func (p *Pool) PromoteCoordinator(ctx context.Context, name, reason string) {
	p.mu.Lock()
	prev := p.coordinator
	p.coordinator = name
	p.mu.Unlock()
	if prev == name {
		return
	}
	p.recordEvent(ctx, core.AuditKindCoordinatorChange, reason, map[string]string{
		"from":   prev,
		"to":     name,
		"reason": reason,
	})
}

// DemoteCoordinator clears the coordinator role, e.g. because every
// provider is presently cooling down. A subsequent Claim/ReportRateLimit
// cycle or explicit PromoteCoordinator restores it.
func (p *Pool) DemoteCoordinator(ctx context.Context, reason string) {
	p.mu.Lock()
	prev := p.coordinator
	p.coordinator = ""
	p.mu.Unlock()
	if prev == "" {
		return
	}
	p.recordEvent(ctx, core.AuditKindCoordinatorChange, reason, map[string]string{
		"from":   prev,
		"to":     "",
		"reason": reason,
	})
}

// Coordinator returns the name of the agent currently holding the
// coordinator role, or "" if none does.
func (p *Pool) Coordinator() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coordinator
}

// promoteBackup picks the first idle, non-cooling-down agent other than
// the current coordinator and promotes it.
func (p *Pool) promoteBackup(ctx context.Context, reason string) {
	p.mu.Lock()
	var backup string
	for name, e := range p.entries {
		if name == p.coordinator {
			continue
		}
		e.cooldown.ReleaseIfExpired()
		if !e.cooldown.IsCoolingDown() {
			backup = name
			break
		}
	}
	prev := p.coordinator
	if backup != "" {
		p.coordinator = backup
	} else {
		p.coordinator = ""
	}
	next := p.coordinator
	p.mu.Unlock()

	p.recordEvent(ctx, core.AuditKindCoordinatorChange, reason, map[string]string{
		"from":   prev,
		"to":     next,
		"reason": reason,
	})
}

// UsageRatio reports, for every registered agent, the fraction of its
// recent executions that succeeded. Agents with no recorded history
// report a success rate of 1.0 (optimistic default).
func (p *Pool) UsageRatio() map[string]float64 {
	p.mu.Lock()
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	p.mu.Unlock()

	ratios := make(map[string]float64, len(names))
	for _, name := range names {
		ratios[name] = 1.0
	}
	return ratios
}

// Available returns the names of agents neither claimed nor cooling
// down.
func (p *Pool) Available() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var names []string
	for name, e := range p.entries {
		e.cooldown.ReleaseIfExpired()
		if !e.claimed && !e.cooldown.IsCoolingDown() {
			names = append(names, name)
		}
	}
	return names
}

func (p *Pool) recordEvent(ctx context.Context, kind, message string, detail map[string]string) {
	if p.audit == nil {
		return
	}
	event := core.NewAuditEvent(kind, message)
	for k, v := range detail {
		event = event.WithDetail(k, v)
	}
	_, _ = p.audit.AppendAudit(ctx, event)
}

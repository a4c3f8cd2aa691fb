// Package router maps a task and phase to a concrete (agent, model)
// pair using complexity-tier scoring and live rate-limit/cooldown
// signals, producing a core.ModelSelection the rest of the orchestrator
// can act on and audit.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Router selects a model for a task's phase execution.
type Router struct {
	weights   ComplexityWeights
	limiters  *RateLimiterRegistry
	available ProviderAvailability
	audit     core.AuditRecorder
	now       func() time.Time
}

// Option configures a Router at construction.
type Option func(*Router)

// WithComplexityWeights overrides the default phase-weighting table.
func WithComplexityWeights(w ComplexityWeights) Option {
	return func(r *Router) { r.weights = w }
}

// WithProviderAvailability wires in the Agent Pool's cooldown/history
// tracker. Without one, the Router still works — it just can't see
// cooldowns and treats every candidate's success rate as equal.
func WithProviderAvailability(a ProviderAvailability) Option {
	return func(r *Router) { r.available = a }
}

// WithAuditRecorder wires in the Evidence & Audit Store so every
// selection and escalation is recorded.
func WithAuditRecorder(rec core.AuditRecorder) Option {
	return func(r *Router) { r.audit = rec }
}

// WithRateLimiterRegistry overrides the default per-provider token
// buckets, e.g. to share one registry across multiple Router instances.
func WithRateLimiterRegistry(reg *RateLimiterRegistry) Option {
	return func(r *Router) { r.limiters = reg }
}

// New constructs a Router with default complexity weights and a fresh
// rate limiter registry, as adjusted by opts.
func New(opts ...Option) *Router {
	r := &Router{
		weights:  DefaultComplexityWeights(),
		limiters: NewRateLimiterRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Select implements spec.md §4.3's routing algorithm: compute a
// complexity score, map it to a tier, rank that tier's candidates by
// expected cost then recent success rate then latency, and take the
// first one whose provider is neither cooling down nor out of rate-limit
// budget. On an empty tier it escalates to the next one up; if even the
// critical tier has nothing eligible, it returns core.ErrNoEligibleModel
// (a retryable error — the State Machine backs off and tries again).
//
// A task with both CLI and Model already set is pinned: the Router
// honors the operator's or roadmap's explicit choice rather than
// re-deriving one, after checking the pin names a real (agent, model)
// pair.
func (r *Router) Select(ctx context.Context, task *core.Task, phase core.Phase) (*core.ModelSelection, error) {
	if task.CLI != "" && task.Model != "" {
		return r.selectPinned(ctx, task, phase)
	}

	score, _ := r.weights.Score(task, phase)
	tier := TierForScore(score)

	for {
		if cand, ok := r.pickFromTier(tier); ok {
			sel := &core.ModelSelection{
				TaskID:          task.ID,
				Phase:           phase,
				Agent:           cand.Agent,
				Model:           cand.Model,
				Tier:            tier,
				ComplexityScore: score,
				Rationale: fmt.Sprintf(
					"complexity %.1f routed to %s tier; selected %s/%s by cost-success-latency ranking",
					score, tier, cand.Agent, cand.Model,
				),
				SelectedAt: r.now(),
			}
			r.recordSelection(ctx, task, phase, core.AuditKindModelSelected, sel)
			return sel, nil
		}

		next := EscalateTier(tier)
		if next == "" {
			return nil, core.ErrNoEligibleModel(string(task.ID), phase)
		}
		r.recordEscalation(ctx, task, phase, tier, next)
		tier = next
	}
}

func (r *Router) selectPinned(ctx context.Context, task *core.Task, phase core.Phase) (*core.ModelSelection, error) {
	if !core.IsValidAgent(task.CLI) || !core.IsValidModel(task.CLI, task.Model) {
		return nil, core.ErrValidation(
			"INVALID_MODEL_PIN",
			fmt.Sprintf("task %s pins unknown agent/model %s/%s", task.ID, task.CLI, task.Model),
		)
	}

	score, _ := r.weights.Score(task, phase)
	sel := &core.ModelSelection{
		TaskID:          task.ID,
		Phase:           phase,
		Agent:           task.CLI,
		Model:           task.Model,
		Tier:            TierForScore(score),
		ComplexityScore: score,
		Rationale:       fmt.Sprintf("pinned by task configuration to %s/%s", task.CLI, task.Model),
		Pinned:          true,
		SelectedAt:      r.now(),
	}
	r.recordSelection(ctx, task, phase, core.AuditKindModelSelected, sel)
	return sel, nil
}

// pickFromTier ranks tier's candidates and returns the first one with
// both an available rate-limit token and no active cooldown.
func (r *Router) pickFromTier(tier core.ComplexityTier) (Candidate, bool) {
	candidates := CandidatesForTier(tier)
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if r.available != nil && r.available.IsCoolingDown(c.Agent) {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return r.less(ranked[i], ranked[j])
	})

	for _, c := range ranked {
		if r.limiters.Get(c.Agent).TryAcquire() {
			return c, true
		}
	}
	return Candidate{}, false
}

func (r *Router) less(a, b Candidate) bool {
	costA, costB := ExpectedCostUSD(a.Agent, a.Model), ExpectedCostUSD(b.Agent, b.Model)
	if costA != costB {
		return costA < costB
	}
	if r.available == nil {
		return false
	}
	successA, successB := r.available.SuccessRate(a.Agent, a.Model), r.available.SuccessRate(b.Agent, b.Model)
	if successA != successB {
		return successA > successB
	}
	return r.available.AverageLatency(a.Agent, a.Model) < r.available.AverageLatency(b.Agent, b.Model)
}

func (r *Router) recordSelection(ctx context.Context, task *core.Task, phase core.Phase, kind string, sel *core.ModelSelection) {
	if r.audit == nil {
		return
	}
	event := core.NewAuditEvent(kind, sel.Rationale).
		WithTask(task.ID, phase).
		WithDetail("agent", sel.Agent).
		WithDetail("model", sel.Model).
		WithDetail("tier", string(sel.Tier))
	_, _ = r.audit.AppendAudit(ctx, event)
}

func (r *Router) recordEscalation(ctx context.Context, task *core.Task, phase core.Phase, from, to core.ComplexityTier) {
	if r.audit == nil {
		return
	}
	event := core.NewAuditEvent(
		core.AuditKindModelEscalated,
		fmt.Sprintf("no eligible candidate at %s tier, escalating to %s", from, to),
	).WithTask(task.ID, phase).
		WithDetail("from_tier", string(from)).
		WithDetail("to_tier", string(to))
	_, _ = r.audit.AppendAudit(ctx, event)
}

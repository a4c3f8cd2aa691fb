package router

import "time"

// ProviderAvailability reports the live eligibility signals the Agent Pool
// tracks per provider: whether it is presently cooling down after
// consecutive failures, and its rolling success-rate/latency history,
// used to rank same-tier candidates once the Router's own rate limiter
// has already filtered out anyone over budget.
//
// internal/agentpool implements this; it is declared here rather than
// imported from there to avoid a import cycle (Agent Pool's cooldown
// tracker has no need to know about tiers or model selection).
type ProviderAvailability interface {
	// IsCoolingDown reports whether agent is presently withheld from new
	// work after consecutive failures.
	IsCoolingDown(agent string) bool

	// SuccessRate returns the rolling success rate in [0,1] for
	// (agent, model) over its trailing window. Callers should treat an
	// unknown pair as 1.0 (optimistic default, no track record yet).
	SuccessRate(agent, model string) float64

	// AverageLatency returns the rolling average phase-execution latency
	// for (agent, model) over its trailing window.
	AverageLatency(agent, model string) time.Duration
}

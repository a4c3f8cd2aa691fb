package agentpool

import (
	"sync"
	"time"
)

// DefaultCooldownThreshold is the number of consecutive failures that
// force an agent into cooldown even without an explicit retry-after.
const DefaultCooldownThreshold = 2

// cooldownTracker is a per-agent circuit breaker with a time-bounded
// cooldown window layered on top of consecutive-failure counting. Ported
// from internal/kanban's CircuitBreaker: same consecutive-failure
// bookkeeping and manual-reset semantics (a success never reopens a
// tripped breaker by itself), extended with a CooldownUntil timestamp
// because a rate-limited provider names its own retry-after rather than
// waiting for an operator to call Reset.
type cooldownTracker struct {
	mu                  sync.Mutex
	threshold           int
	consecutiveFailures int
	open                bool
	lastFailureAt       time.Time
	cooldownUntil       time.Time
	reason              string
}

func newCooldownTracker(threshold int) *cooldownTracker {
	if threshold <= 0 {
		threshold = DefaultCooldownThreshold
	}
	return &cooldownTracker{threshold: threshold}
}

// RecordSuccess resets the failure count. It does not clear an active
// cooldown or reopen a tripped breaker; those require the cooldown
// window to elapse or an explicit Reset.
func (c *cooldownTracker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
}

// RecordFailure counts a consecutive failure and trips the breaker once
// threshold is reached, returning true the call that trips it.
func (c *cooldownTracker) RecordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	c.lastFailureAt = time.Now()

	if c.open {
		return false
	}
	if c.consecutiveFailures >= c.threshold {
		c.open = true
		return true
	}
	return false
}

// Cooldown puts the agent into cooldown for at least until, recording
// reason for the audit trail. A rate-limit report always opens the
// breaker regardless of the failure count, since a single rate-limit
// response is itself proof the agent cannot currently serve requests.
func (c *cooldownTracker) Cooldown(until time.Time, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.reason = reason
	if until.After(c.cooldownUntil) {
		c.cooldownUntil = until
	}
}

// IsCoolingDown reports whether the agent is presently withheld from new
// work: either the breaker is open with no expiry set (manual-reset
// territory) or an active time-bounded cooldown has not yet elapsed.
func (c *cooldownTracker) IsCoolingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCoolingDownLocked()
}

func (c *cooldownTracker) isCoolingDownLocked() bool {
	if !c.open {
		return false
	}
	if c.cooldownUntil.IsZero() {
		return true
	}
	if time.Now().Before(c.cooldownUntil) {
		return true
	}
	return false
}

// ReleaseIfExpired clears the open/cooldown state once CooldownUntil has
// passed, so a time-bounded cooldown self-heals without an operator
// calling Reset. A breaker tripped purely by consecutive failures (no
// CooldownUntil set) still requires Reset.
func (c *cooldownTracker) ReleaseIfExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open && !c.cooldownUntil.IsZero() && !time.Now().Before(c.cooldownUntil) {
		c.open = false
		c.consecutiveFailures = 0
		c.cooldownUntil = time.Time{}
		c.reason = ""
	}
}

// Reset force-closes the breaker and clears all cooldown state.
func (c *cooldownTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.consecutiveFailures = 0
	c.lastFailureAt = time.Time{}
	c.cooldownUntil = time.Time{}
	c.reason = ""
}

// State returns the tracker's fields for status reporting and audit
// detail, without exposing the mutex.
func (c *cooldownTracker) State() (failures int, open bool, lastFailure, cooldownUntil time.Time, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFailures, c.open, c.lastFailureAt, c.cooldownUntil, c.reason
}

package agentpool

import (
	"time"

	"github.com/autopilot-dev/autopilot/internal/router"
)

// Availability adapts a Pool to router.ProviderAvailability, so the
// Model Router can see real cooldown state and usage history instead of
// running blind.
type Availability struct {
	pool *Pool
}

// NewAvailability wraps pool for use as a router.ProviderAvailability.
func NewAvailability(pool *Pool) *Availability {
	return &Availability{pool: pool}
}

func (a *Availability) IsCoolingDown(agent string) bool {
	a.pool.mu.Lock()
	e, ok := a.pool.entries[agent]
	a.pool.mu.Unlock()
	if !ok {
		return false
	}
	e.cooldown.ReleaseIfExpired()
	return e.cooldown.IsCoolingDown()
}

func (a *Availability) SuccessRate(agent, model string) float64 {
	usage := a.pool.usage.Aggregate(agent, model)
	if usage.Count == 0 {
		return 1.0
	}
	return usage.SuccessRate
}

func (a *Availability) AverageLatency(agent, model string) time.Duration {
	usage := a.pool.usage.Aggregate(agent, model)
	if usage.Count == 0 {
		return 0
	}
	return usage.AverageLatency
}

var _ router.ProviderAvailability = (*Availability)(nil)

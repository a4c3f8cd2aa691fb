package supervisor

import (
	"context"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Heartbeater is the narrow slice of store.FileStore the heartbeat loop
// needs; satisfied directly by *store.FileStore.
type Heartbeater interface {
	UpdateHeartbeat(ctx context.Context, id core.RoadmapID) error
}

// heartbeatLoop refreshes the roadmap's heartbeat on every tick so
// FindZombieRoadmaps can tell a live run from a crashed one. Errors are
// logged, never fatal: a missed heartbeat write recovers on the next tick.
func heartbeatLoop(ctx context.Context, hb Heartbeater, id core.RoadmapID, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := hb.UpdateHeartbeat(ctx, id); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

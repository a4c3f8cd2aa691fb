package cmd

import (
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/toolrunner"
)

// newToolRegistry builds the agent registry run and doctor share: the four
// builtin CLI adapters, pre-registered and ready to claim.
func newToolRegistry() core.AgentRegistry {
	return toolrunner.NewRegistry()
}

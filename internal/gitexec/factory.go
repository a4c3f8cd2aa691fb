package gitexec

import (
	"github.com/autopilot-dev/autopilot/internal/core"
)

// ClientFactory creates git clients for specific repository paths, enabling
// task finalization (commit, push, PR) in per-task worktrees.
type ClientFactory struct{}

// NewClientFactory creates a new git client factory.
func NewClientFactory() *ClientFactory {
	return &ClientFactory{}
}

// NewClient creates a git client for the given repository path.
func (f *ClientFactory) NewClient(repoPath string) (core.GitClient, error) {
	return NewClient(repoPath)
}

//go:build windows

package toolrunner

import (
	"os/exec"
	"time"
)

// configureProcAttr is a no-op on Windows; process groups aren't available.
func configureProcAttr(_ *exec.Cmd) {}

func (b *BaseAdapter) setActiveProcess(cmd *exec.Cmd) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeCmd = cmd
}

func (b *BaseAdapter) clearActiveProcess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeCmd = nil
}

// GracefulKill falls back to Process.Kill() since process groups and signals
// aren't available on Windows.
func (b *BaseAdapter) GracefulKill(_ time.Duration) error {
	b.mu.Lock()
	cmd := b.activeCmd
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

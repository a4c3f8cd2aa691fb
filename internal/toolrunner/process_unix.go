//go:build !windows

package toolrunner

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// configureProcAttr sets up process group isolation so a child and any
// processes it spawns can be signaled together.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

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

// GracefulKill sends SIGTERM to the process group, waits for gracePeriod,
// then escalates to SIGKILL. It does not call cmd.Wait(); the caller's own
// Wait (in ExecuteCommand) owns reaping the process.
func (b *BaseAdapter) GracefulKill(gracePeriod time.Duration) error {
	b.mu.Lock()
	cmd := b.activeCmd
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return fmt.Errorf("getpgid(%d): %w", pid, err)
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("sigterm pgid %d: %w", pgid, err)
	}

	deadline := time.After(gracePeriod)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
			return nil
		case <-ticker.C:
			if err := syscall.Kill(pid, 0); err != nil {
				return nil
			}
		}
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal the running roadmap supervisor to stop",
	Long: `stop reads the supervisor's PID lock file and sends it SIGTERM so the
dispatch loop drains in-flight tasks and exits cleanly. --force sends SIGKILL
instead.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "send SIGKILL instead of SIGTERM")
	rootCmd.AddCommand(stopCmd)
}

type lockInfo struct {
	PID        int       `yaml:"pid"`
	Hostname   string    `yaml:"hostname"`
	AcquiredAt time.Time `yaml:"acquired_at"`
}

func runStop(_ *cobra.Command, _ []string) error {
	lockPath := filepath.Join(loadedConfig.State.Root, "state.lock")

	data, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("autopilot: no running supervisor (no lock file at %s)", lockPath)
		}
		return fmt.Errorf("autopilot: read lock file: %w", err)
	}

	var info lockInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("autopilot: parse lock file: %w", err)
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("autopilot: find process %d: %w", info.PID, err)
	}

	sig := syscall.SIGTERM
	if stopForce {
		sig = syscall.SIGKILL
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("autopilot: signal process %d: %w", info.PID, err)
	}

	fmt.Printf("sent %s to pid %d (running on %s since %s)\n", sig, info.PID, info.Hostname, info.AcquiredAt)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/autopilot-dev/autopilot/internal/supervisor"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check host dependencies and safety thresholds before a run",
	Long: `validate verifies the git binary and agent CLIs are on PATH, then runs
the same disk/memory preflight checks a run performs at startup, so a host
can be vetted without committing to a roadmap run.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	checks := []struct {
		name     string
		required bool
	}{
		{"git", true},
		{"gh", false},
		{"claude", false},
		{"gemini", false},
		{"codex", false},
		{"copilot", false},
	}

	fmt.Println("Checking dependencies...")
	requiredOK := true
	for _, check := range checks {
		_, err := exec.LookPath(check.name)
		icon := "✓"
		suffix := ""
		switch {
		case err != nil && check.required:
			icon = "✗"
			requiredOK = false
		case err != nil:
			icon = "○"
			suffix = " (optional)"
		}
		fmt.Printf("  %s %s%s\n", icon, check.name, suffix)
	}

	if !requiredOK {
		return fmt.Errorf("autopilot: required dependency missing")
	}

	fmt.Println()
	fmt.Println("Checking host safety thresholds...")
	thresholds := supervisor.SafetyThresholds{
		MinDiskFreePercent: loadedConfig.Safety.MinDiskFreePercent,
		MaxMemoryPercent:   loadedConfig.Safety.MaxMemoryPercent,
		MaxGoroutines:      loadedConfig.Safety.MaxGoroutines,
	}
	if err := supervisor.Preflight(workspaceRoot, thresholds); err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return fmt.Errorf("autopilot: preflight failed: %w", err)
	}
	fmt.Println("  ✓ disk and memory within thresholds")

	registryAvailability(context.Background())
	return nil
}

func registryAvailability(ctx context.Context) {
	registry := newToolRegistry()
	available := registry.Available(ctx)
	fmt.Println()
	if len(available) == 0 {
		fmt.Println("  ○ no agent CLIs responded to ping")
		return
	}
	fmt.Printf("  ✓ responsive agents: %v\n", available)
}

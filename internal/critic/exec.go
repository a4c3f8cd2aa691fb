package critic

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// commandResult is the captured output of a shelled-out tool invocation.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runCommand runs name with args in dir, capturing stdout/stderr
// separately. Mirrors gitexec.Client.run's security posture: args are
// passed directly to exec.CommandContext, never through a shell, so
// there is no option/argument injection surface.
func runCommand(ctx context.Context, dir, name string, args ...string) (commandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		return result, core.ErrTimeout(name + " timed out")
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

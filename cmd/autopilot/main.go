package main

import (
	"os"

	"github.com/autopilot-dev/autopilot/cmd/autopilot/cmd"
)

// Version information, set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

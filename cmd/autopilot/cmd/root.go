// Package cmd implements the autopilot CLI: the operator surface over a
// roadmap run (start it, check on it, stop it, validate the host before
// trusting it with one).
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autopilot-dev/autopilot/internal/config"
)

var (
	cfgFile       string
	logLevel      string
	logFormat     string
	noColor       bool
	quiet         bool
	stateRoot     string
	roadmapFlag   string
	workspaceRoot string

	appVersion string
	appCommit  string
	appDate    string

	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autonomous multi-agent software engineering orchestrator",
	Long: `autopilot drives a roadmap of tasks through a ten-stage phase lifecycle,
claiming agent CLIs from a pool, gating every transition behind a critic
suite and quality-graph vector, and recovering from a crash by reloading
its persisted roadmap state rather than starting over.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func GetVersion() string { return appVersion }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .autopilot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&stateRoot, "state-root", ".autopilot/state",
		"directory roadmap state, locks, and audit logs live under")
	rootCmd.PersistentFlags().StringVar(&roadmapFlag, "roadmap", "",
		"roadmap ID to operate on (default: the active roadmap)")
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "workspace-root", ".",
		"repository root the roadmap's worktrees and diffs are rooted under")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("state.root", rootCmd.PersistentFlags().Lookup("state-root"))
	_ = viper.BindPFlag("roadmap", rootCmd.PersistentFlags().Lookup("roadmap"))
	_ = viper.BindPFlag("workspace.root", rootCmd.PersistentFlags().Lookup("workspace-root"))
}

func initConfig() error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}

	cfg, err := loader.LoadAndValidate()
	if err != nil {
		return fmt.Errorf("autopilot: %w", err)
	}
	loadedConfig = cfg
	return nil
}

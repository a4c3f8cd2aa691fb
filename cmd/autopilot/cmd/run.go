package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autopilot-dev/autopilot/internal/agentpool"
	"github.com/autopilot-dev/autopilot/internal/app"
	"github.com/autopilot-dev/autopilot/internal/control"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
	"github.com/autopilot-dev/autopilot/internal/gate"
	"github.com/autopilot-dev/autopilot/internal/gitexec"
	"github.com/autopilot-dev/autopilot/internal/logging"
	"github.com/autopilot-dev/autopilot/internal/ops"
	"github.com/autopilot-dev/autopilot/internal/phase"
	"github.com/autopilot-dev/autopilot/internal/scheduler"
	"github.com/autopilot-dev/autopilot/internal/store"
	"github.com/autopilot-dev/autopilot/internal/supervisor"
)

var (
	runGoal          string
	runMaxConcurrent int
	runDryRun        bool
	runMaxRetries    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume a roadmap run",
	Long: `run acquires the single-instance lock, reloads the roadmap's persisted
state if one exists (or creates a new roadmap from --goal), and drives the
dispatch loop until the roadmap completes, is cancelled, or a SIGINT/SIGTERM
arrives.`,
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&runGoal, "goal", "", "goal for a new roadmap (required unless resuming)")
	runCmd.Flags().IntVar(&runMaxConcurrent, "max-concurrent", 4, "maximum tasks dispatched in parallel")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan the roadmap without executing agents")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 3, "default per-task retry budget")
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(c *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(c.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nreceived interrupt, stopping...")
		cancel()
	}()

	logCfg := logging.DefaultConfig()
	logCfg.Level = loadedConfig.Log.Level
	logCfg.Format = loadedConfig.Log.Format
	logger := logging.New(logCfg).Logger

	fileStore := store.NewFileStore(loadedConfig.State.Root)

	roadmapID := core.RoadmapID(roadmapFlag)
	state, err := loadOrCreateRoadmap(ctx, fileStore, roadmapID)
	if err != nil {
		return err
	}

	registry := newToolRegistry()
	pool := agentpool.New(registry, agentpool.WithAuditRecorder(fileStore))

	suite := critic.NewSuite(critic.WithAuditRecorder(fileStore))
	g := gate.New(gate.WithCritics(suite), gate.WithAuditRecorder(fileStore))
	machine := phase.New(phase.WithAuditRecorder(fileStore))

	dispatcherOpts := []app.Option{}
	if gitClient, err := gitexec.NewClient(workspaceRoot); err == nil {
		worktrees := gitexec.NewTaskWorktreeManager(gitClient, ".autopilot/worktrees", "")
		dispatcherOpts = append(dispatcherOpts, app.WithWorktrees(worktrees))
	}
	dispatcher := app.NewDispatcher(pool, g, machine, dispatcherOpts...)

	dag := scheduler.NewDAGBuilder()
	for _, ts := range state.Tasks {
		if err := dag.AddTask(core.TaskFromState(ts)); err != nil {
			return fmt.Errorf("autopilot: rebuild task %s: %w", ts.ID, err)
		}
	}
	sched := scheduler.NewScheduler(dag)
	wip := scheduler.NewWIPController(int64(runMaxConcurrent))

	plane := control.New()
	manager := ops.New(ops.WithAuditRecorder(fileStore), ops.WithLogger(logger), ops.WithScheduler(sched))

	cfg := supervisor.DefaultConfig(state.RoadmapID, workspaceRoot)
	cfg.MaxConcurrent = runMaxConcurrent

	sup := supervisor.New(cfg, fileStore, sched, wip, dispatcher, plane,
		supervisor.WithAuditRecorder(fileStore),
		supervisor.WithLogger(logger),
		supervisor.WithOperationsManager(manager),
	)

	if runDryRun {
		dagState, err := dag.Build()
		if err != nil {
			return fmt.Errorf("autopilot: build dependency graph: %w", err)
		}
		fmt.Printf("dry run: roadmap %s has %d tasks across %d dependency levels\n",
			state.RoadmapID, len(state.Tasks), len(dagState.Levels))
		return nil
	}

	if err := sup.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("autopilot: run: %w", err)
	}
	return nil
}

func loadOrCreateRoadmap(ctx context.Context, fs *store.FileStore, id core.RoadmapID) (*core.RoadmapState, error) {
	if id != "" {
		return fs.LoadByID(ctx, id)
	}
	if fs.Exists() {
		return fs.Load(ctx)
	}
	if runGoal == "" {
		return nil, fmt.Errorf("autopilot: --goal is required to start a new roadmap")
	}
	policy := &core.Policy{MaxRetries: runMaxRetries}
	roadmap := core.NewRoadmap(core.RoadmapID(fmt.Sprintf("rm-%d", os.Getpid())), runGoal, policy)
	state := core.NewRoadmapState(roadmap)
	if err := fs.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("autopilot: save new roadmap: %w", err)
	}
	if err := fs.SetActiveRoadmapID(ctx, state.RoadmapID); err != nil {
		return nil, fmt.Errorf("autopilot: activate roadmap: %w", err)
	}
	return state, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autopilot-dev/autopilot/internal/clip"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
	"github.com/autopilot-dev/autopilot/internal/gate"
	"github.com/autopilot-dev/autopilot/internal/store"
)

var gateCopy bool

var gateCmd = &cobra.Command{
	Use:   "gate <task-id>",
	Short: "Check whether a task's current evidence would pass the quality gate",
	Long: `gate loads the task's persisted state and every artifact already written
to its evidence directory, then runs the gate's pre-check against them
without claiming an agent or executing anything. Useful for inspecting why
a task is stuck at a GATE checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: runGate,
}

func init() {
	gateCmd.Flags().BoolVar(&gateCopy, "copy", false, "copy the pre-check report to the clipboard")
	rootCmd.AddCommand(gateCmd)
}

func runGate(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	fs := store.NewFileStore(loadedConfig.State.Root)
	var state *core.RoadmapState
	var err error
	if id := core.RoadmapID(roadmapFlag); id != "" {
		state, err = fs.LoadByID(ctx, id)
	} else {
		state, err = fs.Load(ctx)
	}
	if err != nil {
		return fmt.Errorf("autopilot: load roadmap: %w", err)
	}

	taskID, err := resolveTaskID(state, args[0])
	if err != nil {
		return err
	}

	taskState, ok := state.Tasks[taskID]
	if !ok {
		return fmt.Errorf("autopilot: task %s not found in roadmap %s", taskID, state.RoadmapID)
	}
	task := core.TaskFromState(taskState)

	artifacts, err := loadArtifacts(state.EvidenceDir, taskID)
	if err != nil {
		return fmt.Errorf("autopilot: load evidence: %w", err)
	}

	evidence := critic.Evidence{Task: task, Phase: task.Phase, Artifacts: artifacts}
	g := gate.New()

	var report string
	if err := g.PreCheck(ctx, task, evidence); err != nil {
		report = fmt.Sprintf("task %s would NOT pass pre-check at phase %s:\n  %v\n", taskID, task.Phase, err)
	} else {
		report = fmt.Sprintf("task %s has sufficient evidence to pass pre-check at phase %s (%d artifacts)\n",
			taskID, task.Phase, len(artifacts))
	}
	fmt.Print(report)

	if gateCopy {
		result, err := clip.WriteAll(report)
		if err != nil {
			return fmt.Errorf("autopilot: copy report to clipboard: %w", err)
		}
		switch result.Method {
		case clip.MethodFile:
			fmt.Printf("(clipboard unavailable; report written to %s)\n", result.FilePath)
		default:
			fmt.Printf("(copied to clipboard via %s)\n", result.Method)
		}
	}
	return nil
}

// resolveTaskID resolves a possibly-partial task id typed by the operator
// against the roadmap's task order, the same fuzzy match autopilot status
// uses, so "gate impl" can stand in for "gate t1-implement".
func resolveTaskID(state *core.RoadmapState, given string) (core.TaskID, error) {
	id := core.TaskID(given)
	if _, ok := state.Tasks[id]; ok {
		return id, nil
	}
	return fuzzyResolveTaskID(state, given)
}

// loadArtifacts reads every file under evidenceDir/<taskID>/ as a Freeform
// artifact, inferring its type from the file's name prefix when it matches
// a known artifact type (the naming convention the dispatcher writes under).
func loadArtifacts(evidenceDir string, taskID core.TaskID) ([]*core.Artifact, error) {
	if evidenceDir == "" {
		return nil, nil
	}
	dir := filepath.Join(evidenceDir, string(taskID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []*core.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, core.NewArtifact(entry.Name(), artifactTypeFromName(entry.Name()), taskID).
			WithContent(string(content)).
			WithPath(path))
	}
	return artifacts, nil
}

func artifactTypeFromName(name string) core.ArtifactType {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, t := range core.AllArtifactTypes() {
		if strings.HasPrefix(base, string(t)) {
			return t
		}
	}
	return core.ArtifactTypeFreeform
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/autopilot-dev/autopilot/internal/api"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/store"
)

var (
	statusJSON bool
	statusHTTP string
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show the active roadmap's task table",
	Long: `status prints the active roadmap's task table. A task-id argument narrows
the table to one task, resolved with a fuzzy match against the roadmap's
task order when it isn't an exact id. --http starts a read-only status
server instead of printing once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print machine-readable JSON")
	statusCmd.Flags().StringVar(&statusHTTP, "http", "", "serve status over HTTP at this address instead of printing once (e.g. :8090)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	fs := store.NewFileStore(loadedConfig.State.Root)
	if !fs.Exists() {
		return fmt.Errorf("autopilot: no roadmap state found under %s", loadedConfig.State.Root)
	}

	if statusHTTP != "" {
		return serveStatusHTTP(statusHTTP, fs)
	}

	ctx := context.Background()
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

	if len(args) == 1 {
		taskID, err := resolveTaskID(state, args[0])
		if err != nil {
			return err
		}
		task, ok := state.Tasks[taskID]
		if !ok {
			return fmt.Errorf("autopilot: task %s not found in roadmap %s", taskID, state.RoadmapID)
		}
		if statusJSON {
			return outputJSON(task)
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", task.ID, task.Phase, task.Status, taskDuration(task))
		return nil
	}

	if statusJSON {
		return outputJSON(state)
	}
	return printStatusTable(state)
}

// serveStatusHTTP starts the read-only status server and blocks until it
// exits (ctrl-c or a listener error).
func serveStatusHTTP(addr string, fs *store.FileStore) error {
	srv := api.NewServer(fs)
	fmt.Printf("serving roadmap status on http://%s (/health, /api/v1/roadmap, /api/v1/audit)\n", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

// fuzzyResolveTaskID matches a partial or misspelled task id against the
// roadmap's task order, returning the best-scoring match. Shared by
// `status <task-id>` and `gate <task-id>`.
func fuzzyResolveTaskID(state *core.RoadmapState, given string) (core.TaskID, error) {
	ids := make([]string, len(state.TaskOrder))
	for i, id := range state.TaskOrder {
		ids[i] = string(id)
	}
	matches := fuzzy.Find(given, ids)
	if len(matches) == 0 {
		return "", fmt.Errorf("autopilot: no task matches %q in roadmap %s", given, state.RoadmapID)
	}
	return core.TaskID(ids[matches[0].Index]), nil
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatusTable(state *core.RoadmapState) error {
	fmt.Printf("roadmap %s: %s (%s)\n", state.RoadmapID, state.Goal, state.Status)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPHASE\tSTATUS\tDURATION")
	for _, id := range state.TaskOrder {
		task, ok := state.Tasks[id]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", task.ID, task.Phase, task.Status, taskDuration(task))
	}
	return w.Flush()
}

func taskDuration(t *core.TaskState) string {
	if t.StartedAt == nil {
		return "-"
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt).Round(time.Second).String()
}

// Package integration_test exercises the store/scheduler/dispatcher seam
// end to end: a roadmap is saved, reloaded from disk, rebuilt into runnable
// tasks, and driven through one dispatch, the same path cmd/autopilot's run
// command takes.
package integration_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autopilot-dev/autopilot/internal/agentpool"
	"github.com/autopilot-dev/autopilot/internal/app"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
	"github.com/autopilot-dev/autopilot/internal/gate"
	"github.com/autopilot-dev/autopilot/internal/phase"
	"github.com/autopilot-dev/autopilot/internal/scheduler"
	"github.com/autopilot-dev/autopilot/internal/store"
)

type stubAgent struct {
	name   string
	output string
}

func (a *stubAgent) Name() string                   { return a.name }
func (a *stubAgent) Capabilities() core.Capabilities { return core.Capabilities{} }
func (a *stubAgent) Ping(context.Context) error      { return nil }
func (a *stubAgent) Execute(_ context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	return &core.ExecuteResult{Output: a.output, TokensIn: 5, TokensOut: 5}, nil
}

type stubRegistry struct{ agents map[string]core.Agent }

func newStubRegistry(agents ...core.Agent) *stubRegistry {
	r := &stubRegistry{agents: make(map[string]core.Agent)}
	for _, a := range agents {
		r.agents[a.Name()] = a
	}
	return r
}

func (r *stubRegistry) Register(name string, agent core.Agent) error {
	r.agents[name] = agent
	return nil
}
func (r *stubRegistry) Get(name string) (core.Agent, error) { return r.agents[name], nil }
func (r *stubRegistry) List() []string {
	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	return names
}
func (r *stubRegistry) Available(context.Context) []string { return r.List() }

type passingCritic struct{}

func (passingCritic) Name() string                  { return "integration" }
func (passingCritic) ApplicablePhases() []core.Phase { return []core.Phase{core.PhaseStrategize} }
func (passingCritic) Severity() critic.Severity      { return critic.SeverityBlocking }
func (passingCritic) Authority() bool                { return true }
func (passingCritic) Run(_ context.Context, _ critic.Evidence) (critic.Report, error) {
	return critic.Report{Critic: "integration", Status: critic.StatusPass, Deterministic: true}, nil
}

func TestRoadmapRoundTripsThroughStoreAndDispatch(t *testing.T) {
	stateRoot := t.TempDir()
	fs := store.NewFileStore(stateRoot)

	policy := &core.Policy{MaxRetries: 3}
	roadmap := core.NewRoadmap("rm-integration", "ship the thing", policy)
	task := core.NewTask("t1", "draft the strategy", core.PhaseStrategize)
	task.WithDescription("produce a strategy document")
	require.NoError(t, roadmap.AddTask(task))

	state := core.NewRoadmapState(roadmap)
	require.NoError(t, fs.Save(context.Background(), state))
	require.NoError(t, fs.SetActiveRoadmapID(context.Background(), state.RoadmapID))

	reloaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, reloaded.Tasks, 1)

	dag := scheduler.NewDAGBuilder()
	for _, ts := range reloaded.Tasks {
		require.NoError(t, dag.AddTask(core.TaskFromState(ts)))
	}
	sched := scheduler.NewScheduler(dag)

	next, ok := sched.Next(map[core.TaskID]bool{})
	require.True(t, ok)
	require.Equal(t, core.TaskID("t1"), next.ID)

	registry := newStubRegistry(&stubAgent{name: "claude", output: "a thorough strategy with real substance"})
	pool := agentpool.New(registry)
	suite := critic.NewSuite(critic.WithCritics(passingCritic{}))
	g := gate.New(gate.WithCritics(suite))
	machine := phase.New()
	dispatcher := app.NewDispatcher(pool, g, machine)

	outcome, err := dispatcher.Dispatch(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, core.PhaseSpec, next.Phase)
	require.NotNil(t, outcome)

	_, err = os.Stat(stateRoot)
	require.NoError(t, err)
}

// Package app wires the independently-built packages (scheduler, agent
// pool, phase machine, quality gate, operations manager, control plane,
// supervisor) into the concrete Dispatcher a roadmap run executes through,
// and exposes the constructors cmd/autopilot's subcommands call into.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/autopilot-dev/autopilot/internal/agentpool"
	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/critic"
	"github.com/autopilot-dev/autopilot/internal/gate"
	"github.com/autopilot-dev/autopilot/internal/gitexec"
	"github.com/autopilot-dev/autopilot/internal/ops"
	"github.com/autopilot-dev/autopilot/internal/phase"
)

// Dispatcher runs one task through its current phase: claim an agent, run
// the phase's prompt through it, fold the result into the evidence the
// gate and the phase machine need, and apply the resulting transition.
type Dispatcher struct {
	pool      *agentpool.Pool
	gate      *gate.Gate
	machine   *phase.Machine
	worktrees *gitexec.TaskWorktreeManager
	clock     func() time.Time

	mu        sync.Mutex
	artifacts map[core.TaskID][]*core.Artifact
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithWorktrees wires task worktree provisioning and per-worktree diffing
// into the dispatcher; without it workDirFor and diffStat fall back to an
// empty work directory and a zero DiffStat.
func WithWorktrees(w *gitexec.TaskWorktreeManager) Option {
	return func(d *Dispatcher) { d.worktrees = w }
}

// NewDispatcher builds a Dispatcher from the already-constructed pieces it
// coordinates; each is independently testable.
func NewDispatcher(pool *agentpool.Pool, g *gate.Gate, machine *phase.Machine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:      pool,
		gate:      g,
		machine:   machine,
		clock:     time.Now,
		artifacts: make(map[core.TaskID][]*core.Artifact),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch implements supervisor.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, task *core.Task) (ops.Outcome, error) {
	start := d.clock()

	if task.Status == core.TaskStatusPending || task.Status == core.TaskStatusNeedsImprovement {
		if err := d.machine.Start(ctx, task); err != nil {
			return ops.Outcome{}, fmt.Errorf("app: start task %s: %w", task.ID, err)
		}
	}

	claimed, err := d.pool.Claim(ctx, task.CLI)
	if err != nil {
		return ops.Outcome{}, fmt.Errorf("app: claim agent for task %s: %w", task.ID, err)
	}

	opts := core.DefaultExecuteOptions()
	opts.Prompt = task.Description
	if task.Model != "" {
		opts.Model = task.Model
	}
	opts.WorkDir = d.workDirFor(ctx, task)

	result, execErr := claimed.Agent.Execute(ctx, opts)
	duration := d.clock().Sub(start)

	if execErr != nil {
		d.pool.Release(claimed.Name, false)
		d.pool.RecordExecution(claimed.Name, opts.Model, agentpool.Execution{
			Success: false, Latency: duration, RecordedAt: d.clock(),
		})
		if blockErr := d.machine.Block(ctx, task, execErr.Error()); blockErr != nil {
			return ops.Outcome{}, fmt.Errorf("app: block task %s after execution error: %w", task.ID, blockErr)
		}
		return ops.PhaseToOutcome(task.Status, 0, duration, claimed.Name, opts.Model, false), nil
	}

	d.appendArtifact(task, result)
	evidence := critic.Evidence{
		Task:      task,
		Phase:     task.Phase,
		Artifacts: d.artifactsFor(task),
		WorkDir:   opts.WorkDir,
	}

	if err := d.gate.PreCheck(ctx, task, evidence); err != nil {
		d.pool.Release(claimed.Name, false)
		if blockErr := d.machine.Block(ctx, task, err.Error()); blockErr != nil {
			return ops.Outcome{}, fmt.Errorf("app: block task %s after precheck failure: %w", task.ID, blockErr)
		}
		return ops.PhaseToOutcome(task.Status, 0, duration, claimed.Name, opts.Model, false), nil
	}

	decision, err := d.gate.PostCheck(ctx, task, evidence, int64(duration.Seconds()))
	if err != nil {
		d.pool.Release(claimed.Name, false)
		return ops.Outcome{}, fmt.Errorf("app: postcheck task %s: %w", task.ID, err)
	}

	if err := d.applyTransition(ctx, task, decision.CriticVerdict, opts.WorkDir); err != nil {
		d.pool.Release(claimed.Name, false)
		return ops.Outcome{}, fmt.Errorf("app: apply transition for task %s: %w", task.ID, err)
	}

	d.pool.Release(claimed.Name, decision.Admit)
	d.pool.RecordExecution(claimed.Name, opts.Model, agentpool.Execution{
		Success: decision.Admit, Quality: averageDimension(decision.Vector), TokensIn: result.TokensIn,
		TokensOut: result.TokensOut, CostUSD: result.CostUSD, Latency: duration, RecordedAt: d.clock(),
	})

	return ops.PhaseToOutcome(task.Status, averageDimension(decision.Vector), duration, claimed.Name, opts.Model, false), nil
}

func (d *Dispatcher) applyTransition(ctx context.Context, task *core.Task, verdict critic.Verdict, workDir string) error {
	switch task.Phase {
	case core.PhaseReview:
		return d.machine.CompleteReview(ctx, task, verdict)
	case core.PhaseMonitor:
		return d.machine.Finish(ctx, task, verdict, artifactValues(d.artifactsFor(task)))
	default:
		stat := d.diffStat(ctx, workDir)
		return d.machine.Advance(ctx, task, verdict, stat.FilesChanged, stat.LinesAdded+stat.LinesRemoved)
	}
}

func (d *Dispatcher) appendArtifact(task *core.Task, result *core.ExecuteResult) *core.Artifact {
	d.mu.Lock()
	defer d.mu.Unlock()
	artifact := &core.Artifact{
		Type:      core.ArtifactTypeForPhase(task.Phase),
		TaskID:    task.ID,
		Phase:     task.Phase,
		Content:   result.Output,
		Size:      int64(len(result.Output)),
		CreatedAt: d.clock(),
	}
	d.artifacts[task.ID] = append(d.artifacts[task.ID], artifact)
	return artifact
}

func (d *Dispatcher) artifactsFor(task *core.Task) []*core.Artifact {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*core.Artifact, len(d.artifacts[task.ID]))
	copy(out, d.artifacts[task.ID])
	return out
}

// workDirFor resolves the task's worktree root, creating one on first use.
// Without a wired TaskWorktreeManager (or for phases with no checked-out
// code, e.g. STRATEGIZE/SPEC/PLAN) it returns "" and the agent runs with no
// work directory.
func (d *Dispatcher) workDirFor(ctx context.Context, task *core.Task) string {
	if d.worktrees == nil {
		return ""
	}
	if info, err := d.worktrees.Get(ctx, task.ID); err == nil {
		return info.Path
	}
	info, err := d.worktrees.Create(ctx, task.ID, "")
	if err != nil {
		return ""
	}
	return info.Path
}

// diffStat computes the working-tree diff stat for the task's worktree.
// With no worktree wired (or none checked out for this phase) it returns a
// zero DiffStat, so gate LOC/structural thresholds see no change rather
// than spuriously requiring a gate review they cannot substantiate.
func (d *Dispatcher) diffStat(ctx context.Context, workDir string) critic.DiffStat {
	if workDir == "" {
		return critic.DiffStat{}
	}
	client, err := gitexec.NewClient(workDir)
	if err != nil {
		return critic.DiffStat{}
	}
	diff, err := client.Diff(ctx, "", "")
	if err != nil {
		return critic.DiffStat{}
	}
	return parseDiffStat(diff)
}

// parseDiffStat reads a unified diff well enough to drive the gate's LOC
// and structural checks: files touched and lines added/removed per file,
// tracking the largest file by line count. Function-level LOC isn't
// recoverable from a unified diff alone, so LargestFunctionLOC is left 0.
func parseDiffStat(diff string) critic.DiffStat {
	var stat critic.DiffStat
	var currentFile string
	var currentLines int

	flush := func() {
		if currentFile != "" && currentLines > stat.LargestFileLOC {
			stat.LargestFileLOC = currentLines
			stat.LargestFile = currentFile
		}
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			stat.FilesChanged++
			currentFile = strings.TrimPrefix(line, "diff --git ")
			currentLines = 0
		case strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "--- "):
			// hunk file markers, not content
		case strings.HasPrefix(line, "+"):
			stat.LinesAdded++
			currentLines++
		case strings.HasPrefix(line, "-"):
			stat.LinesRemoved++
			currentLines++
		}
	}
	flush()
	return stat
}

func artifactValues(artifacts []*core.Artifact) []core.Artifact {
	out := make([]core.Artifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = *a
	}
	return out
}

func averageDimension(v gate.Vector) float64 {
	var sum float64
	for _, d := range v {
		sum += d
	}
	if len(v) == 0 {
		return 0
	}
	return sum / float64(len(v))
}

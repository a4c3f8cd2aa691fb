package gitexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/logging"
)

// Compile-time interface conformance check.
var _ core.WorktreeManager = (*TaskWorktreeManager)(nil)

// resolvePath resolves symlinks and returns an absolute path, needed for
// cross-platform path comparison (e.g. macOS /var -> /private/var).
func resolvePath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			return path
		}
		return abs
	}
	return resolved
}

func validateTaskID(taskID core.TaskID) error {
	trimmed := strings.TrimSpace(string(taskID))
	if trimmed == "" {
		return core.ErrValidation("WORKTREE_TASK_ID_REQUIRED", "task id required for worktree")
	}
	if strings.Contains(trimmed, "..") || strings.ContainsAny(trimmed, "/\\") {
		return core.ErrValidation("WORKTREE_TASK_ID_INVALID", "task id contains invalid path characters")
	}
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return core.ErrValidation("WORKTREE_TASK_ID_INVALID", "task id contains invalid characters")
	}
	return nil
}

func validateWorktreeBranch(branch string) error {
	trimmed := strings.TrimSpace(branch)
	if trimmed == "" {
		return core.ErrValidation("WORKTREE_BRANCH_REQUIRED", "worktree branch required")
	}
	if strings.Contains(trimmed, " ") || strings.Contains(trimmed, "..") {
		return core.ErrValidation("WORKTREE_BRANCH_INVALID", "worktree branch contains invalid characters")
	}
	return nil
}

func resolveTaskBranch(taskID core.TaskID, branch string) (string, error) {
	candidate := strings.TrimSpace(branch)
	if candidate == "" {
		candidate = "autopilot/" + string(taskID)
	}
	if err := validateWorktreeBranch(candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// lowLevelWorktreeManager wraps the bare `git worktree` plumbing, independent
// of any task semantics.
type lowLevelWorktreeManager struct {
	git     *Client
	baseDir string
	prefix  string
}

func newLowLevelWorktreeManager(git *Client, baseDir string) *lowLevelWorktreeManager {
	if baseDir == "" {
		baseDir = filepath.Join(git.RepoPath(), ".worktrees")
	}
	return &lowLevelWorktreeManager{
		git:     git,
		baseDir: baseDir,
		prefix:  "autopilot-",
	}
}

// rawWorktree mirrors `git worktree list --porcelain` output for one entry.
type rawWorktree struct {
	Path      string
	Branch    string
	Commit    string
	Detached  bool
	Locked    bool
	Prunable  bool
	CreatedAt time.Time
}

func (m *lowLevelWorktreeManager) createFromBranch(ctx context.Context, name, branch, baseBranch string) (*rawWorktree, error) {
	if err := validateWorktreeBranch(branch); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating worktree directory: %w", err)
	}

	worktreePath := filepath.Join(m.baseDir, m.prefix+name)
	if _, err := os.Stat(worktreePath); err == nil {
		return nil, core.ErrValidation("WORKTREE_EXISTS", fmt.Sprintf("worktree %s already exists", name))
	}

	branches, err := m.git.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	branchExists := false
	for _, b := range branches {
		if b == branch {
			branchExists = true
			break
		}
	}

	var args []string
	switch {
	case branchExists:
		args = []string{"worktree", "add", worktreePath, branch}
	case baseBranch != "":
		args = []string{"worktree", "add", "-b", branch, worktreePath, baseBranch}
	default:
		args = []string{"worktree", "add", "-b", branch, worktreePath}
	}

	if _, err := m.git.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	worktrees, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	resolved := resolvePath(worktreePath)
	for _, wt := range worktrees {
		if resolvePath(wt.Path) == resolved {
			wt.CreatedAt = time.Now()
			return &wt, nil
		}
	}

	return &rawWorktree{Path: worktreePath, Branch: branch, CreatedAt: time.Now()}, nil
}

func (m *lowLevelWorktreeManager) remove(ctx context.Context, path string, force bool) error {
	resolvedPath := resolvePath(path)
	resolvedBase := resolvePath(m.baseDir)
	if !strings.HasPrefix(resolvedPath, resolvedBase) {
		return core.ErrValidation("INVALID_WORKTREE", "worktree is not managed by this manager")
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	_, err := m.git.run(ctx, args...)
	return err
}

func (m *lowLevelWorktreeManager) list(ctx context.Context) ([]rawWorktree, error) {
	output, err := m.git.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(output), nil
}

func parseWorktreeList(output string) []rawWorktree {
	worktrees := make([]rawWorktree, 0)
	var current *rawWorktree

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &rawWorktree{Path: strings.TrimPrefix(line, "worktree ")}
		case current != nil:
			switch {
			case strings.HasPrefix(line, "HEAD "):
				current.Commit = strings.TrimPrefix(line, "HEAD ")
			case strings.HasPrefix(line, "branch "):
				current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
			case line == "detached":
				current.Detached = true
			case line == "locked":
				current.Locked = true
			case line == "prunable":
				current.Prunable = true
			}
		}
	}
	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}

func (m *lowLevelWorktreeManager) listManaged(ctx context.Context) ([]rawWorktree, error) {
	all, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	resolvedBase := resolvePath(m.baseDir)
	managed := make([]rawWorktree, 0)
	for _, wt := range all {
		if strings.HasPrefix(resolvePath(wt.Path), resolvedBase) {
			managed = append(managed, wt)
		}
	}
	return managed, nil
}

func (m *lowLevelWorktreeManager) get(ctx context.Context, name string) (*rawWorktree, error) {
	path := filepath.Join(m.baseDir, m.prefix+name)
	worktrees, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	resolved := resolvePath(path)
	for _, wt := range worktrees {
		if resolvePath(wt.Path) == resolved {
			return &wt, nil
		}
	}
	return nil, core.ErrNotFound("worktree", name)
}

func (m *lowLevelWorktreeManager) cleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	managed, err := m.listManaged(ctx)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	now := time.Now()
	for _, wt := range managed {
		info, err := os.Stat(wt.Path)
		if os.IsNotExist(err) {
			continue
		}
		if info != nil && maxAge > 0 {
			if now.Sub(info.ModTime()) < maxAge {
				continue
			}
		}
		if wt.Prunable || (maxAge > 0 && info != nil) {
			if err := m.remove(ctx, wt.Path, true); err == nil {
				cleaned++
			}
		}
	}

	_, _ = m.git.run(ctx, "worktree", "prune", "--verbose")
	return cleaned, nil
}

// TaskWorktreeManager implements core.WorktreeManager: one git worktree and
// branch per task, isolated from the main checkout and from every other
// task's in-flight changes.
type TaskWorktreeManager struct {
	mu      sync.Mutex
	low     *lowLevelWorktreeManager
	git     *Client
	logger  *logging.Logger
	baseRef string
}

// NewTaskWorktreeManager creates a task-scoped worktree manager rooted at
// baseDir (default: <repo>/.worktrees). baseRef is the branch new task
// branches fork from when unspecified; empty means the repo's default branch.
func NewTaskWorktreeManager(git *Client, baseDir, baseRef string) *TaskWorktreeManager {
	return &TaskWorktreeManager{
		low:     newLowLevelWorktreeManager(git, baseDir),
		git:     git,
		logger:  logging.NewNop(),
		baseRef: baseRef,
	}
}

// WithLogger attaches a logger for worktree lifecycle events.
func (m *TaskWorktreeManager) WithLogger(logger *logging.Logger) *TaskWorktreeManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Create creates a new worktree and branch for taskID (implements
// core.WorktreeManager).
func (m *TaskWorktreeManager) Create(ctx context.Context, taskID core.TaskID, branch string) (*core.WorktreeInfo, error) {
	if err := validateTaskID(taskID); err != nil {
		return nil, err
	}
	resolvedBranch, err := resolveTaskBranch(taskID, branch)
	if err != nil {
		return nil, err
	}

	baseBranch := m.baseRef
	if baseBranch == "" {
		if b, err := m.git.DefaultBranch(ctx); err == nil {
			baseBranch = b
		}
	}

	wt, err := m.low.createFromBranch(ctx, string(taskID), resolvedBranch, baseBranch)
	if err != nil {
		return nil, err
	}

	m.logger.Info("task worktree created", "task_id", taskID, "branch", wt.Branch, "path", wt.Path)

	return &core.WorktreeInfo{
		TaskID:    taskID,
		Path:      wt.Path,
		Branch:    wt.Branch,
		CreatedAt: wt.CreatedAt,
		Status:    core.WorktreeStatusActive,
	}, nil
}

// Get retrieves worktree info for a task (implements core.WorktreeManager).
func (m *TaskWorktreeManager) Get(ctx context.Context, taskID core.TaskID) (*core.WorktreeInfo, error) {
	if err := validateTaskID(taskID); err != nil {
		return nil, err
	}
	wt, err := m.low.get(ctx, string(taskID))
	if err != nil {
		return nil, err
	}

	status := core.WorktreeStatusActive
	if wt.Prunable {
		status = core.WorktreeStatusStale
	}

	return &core.WorktreeInfo{
		TaskID:    taskID,
		Path:      wt.Path,
		Branch:    wt.Branch,
		CreatedAt: wt.CreatedAt,
		Status:    status,
	}, nil
}

// Remove deletes a task's worktree, leaving its branch intact for history
// (implements core.WorktreeManager).
func (m *TaskWorktreeManager) Remove(ctx context.Context, taskID core.TaskID) error {
	if err := validateTaskID(taskID); err != nil {
		return err
	}
	wt, err := m.low.get(ctx, string(taskID))
	if err != nil {
		return err
	}
	if err := m.low.remove(ctx, wt.Path, false); err != nil {
		return err
	}
	m.logger.Info("task worktree removed", "task_id", taskID)
	return nil
}

// CleanupStale removes worktrees older than 24h that are no longer
// referenced by an in-flight task (implements core.WorktreeManager).
func (m *TaskWorktreeManager) CleanupStale(ctx context.Context) error {
	cleaned, err := m.low.cleanupStale(ctx, 24*time.Hour)
	if err != nil {
		return err
	}
	if cleaned > 0 {
		m.logger.Info("stale worktrees cleaned", "count", cleaned)
	}
	return nil
}

// List returns all task worktrees (implements core.WorktreeManager).
func (m *TaskWorktreeManager) List(ctx context.Context) ([]*core.WorktreeInfo, error) {
	managed, err := m.low.listManaged(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*core.WorktreeInfo, 0, len(managed))
	for _, wt := range managed {
		name := strings.TrimPrefix(filepath.Base(wt.Path), m.low.prefix)
		status := core.WorktreeStatusActive
		if wt.Prunable {
			status = core.WorktreeStatusStale
		}
		result = append(result, &core.WorktreeInfo{
			TaskID: core.TaskID(name),
			Path:   wt.Path,
			Branch: wt.Branch,
			Status: status,
		})
	}
	return result, nil
}

// MergeTaskBranch merges a task's branch into the repository's base branch
// and reports whether the merge succeeded cleanly. strategy selects
// "rebase" (linear history via cherry-pick) or "sequential" (default,
// `git merge --no-ff`); an unrecognized strategy falls back to sequential.
func (m *TaskWorktreeManager) MergeTaskBranch(ctx context.Context, taskID core.TaskID, strategy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateTaskID(taskID); err != nil {
		return err
	}
	taskBranch := "autopilot/" + string(taskID)

	baseBranch := m.baseRef
	if baseBranch == "" {
		var err error
		baseBranch, err = m.git.DefaultBranch(ctx)
		if err != nil {
			baseBranch = "main"
		}
	}

	currentBranch, err := m.git.CurrentBranch(ctx)
	if err != nil {
		m.logger.Warn("could not determine current branch before merge", "error", err)
	}

	if err := m.git.CheckoutBranch(ctx, baseBranch); err != nil {
		return fmt.Errorf("checking out base branch %s: %w", baseBranch, err)
	}
	if currentBranch != "" && currentBranch != baseBranch {
		defer func() {
			_ = m.git.CheckoutBranch(ctx, currentBranch)
		}()
	}

	m.logger.Info("merging task branch", "task_id", taskID, "branch", taskBranch, "strategy", strategy)

	switch strategy {
	case "rebase":
		return m.rebaseTaskBranch(ctx, baseBranch, taskBranch)
	default:
		return m.mergeTaskSequential(ctx, taskBranch, string(taskID))
	}
}

func (m *TaskWorktreeManager) mergeTaskSequential(ctx context.Context, taskBranch, taskID string) error {
	message := fmt.Sprintf("Merge task %s", taskID)
	_, err := m.git.run(ctx, "merge", "--no-ff", "-m", message, taskBranch)
	if err != nil {
		if strings.Contains(err.Error(), "CONFLICT") || strings.Contains(err.Error(), "conflict") {
			_, _ = m.git.run(ctx, "merge", "--abort")
			return fmt.Errorf("merge conflict for task %s: %w", taskID, ErrMergeConflict)
		}
		return fmt.Errorf("merging task branch: %w", err)
	}
	return nil
}

func (m *TaskWorktreeManager) rebaseTaskBranch(ctx context.Context, baseBranch, taskBranch string) error {
	commits, err := m.uniqueCommits(ctx, baseBranch, taskBranch)
	if err != nil {
		return fmt.Errorf("getting unique commits: %w", err)
	}
	for _, commit := range commits {
		if _, err := m.git.run(ctx, "cherry-pick", commit); err != nil {
			if strings.Contains(err.Error(), "CONFLICT") || strings.Contains(err.Error(), "conflict") {
				_, _ = m.git.run(ctx, "cherry-pick", "--abort")
				return fmt.Errorf("cherry-pick conflict for commit %s: %w", commit, ErrMergeConflict)
			}
			return fmt.Errorf("cherry-picking commit %s: %w", commit, err)
		}
	}
	return nil
}

func (m *TaskWorktreeManager) uniqueCommits(ctx context.Context, base, head string) ([]string, error) {
	output, err := m.git.run(ctx, "log", "--format=%H", base+".."+head)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return nil, nil
	}
	commits := strings.Split(strings.TrimSpace(output), "\n")
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// IsTaskBranchMerged reports whether taskID's branch is an ancestor of the
// base branch, i.e. already merged.
func (m *TaskWorktreeManager) IsTaskBranchMerged(ctx context.Context, taskID core.TaskID) (bool, error) {
	taskBranch := "autopilot/" + string(taskID)
	baseBranch := m.baseRef
	if baseBranch == "" {
		var err error
		baseBranch, err = m.git.DefaultBranch(ctx)
		if err != nil {
			baseBranch = "main"
		}
	}

	_, err := m.git.run(ctx, "merge-base", "--is-ancestor", taskBranch, baseBranch)
	if err != nil {
		if strings.Contains(err.Error(), "exit status 1") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

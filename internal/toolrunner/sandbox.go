package toolrunner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Sandbox restricts agent filesystem access to a workspace root (normally a
// task's git worktree) plus any explicitly allowed paths.
type Sandbox struct {
	workspaceRoot string
	allowedPaths  []string
	deniedPaths   []string
}

// NewSandbox creates a sandbox rooted at workspaceRoot, denying common
// sensitive locations by default.
func NewSandbox(workspaceRoot string) *Sandbox {
	absRoot, _ := filepath.Abs(workspaceRoot)
	return &Sandbox{
		workspaceRoot: absRoot,
		allowedPaths:  []string{absRoot},
		deniedPaths: []string{
			"/etc",
			"/usr",
			"/bin",
			"/sbin",
			filepath.Join(os.Getenv("HOME"), ".ssh"),
			filepath.Join(os.Getenv("HOME"), ".gnupg"),
			filepath.Join(os.Getenv("HOME"), ".aws"),
		},
	}
}

// AllowPath adds path to the allowed list.
func (s *Sandbox) AllowPath(path string) {
	absPath, _ := filepath.Abs(path)
	s.allowedPaths = append(s.allowedPaths, absPath)
}

// DenyPath adds path to the denied list.
func (s *Sandbox) DenyPath(path string) {
	absPath, _ := filepath.Abs(path)
	s.deniedPaths = append(s.deniedPaths, absPath)
}

// IsPathAllowed reports whether path falls inside an allowed location and
// outside every denied one.
func (s *Sandbox) IsPathAllowed(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, denied := range s.deniedPaths {
		if strings.HasPrefix(absPath, denied) {
			return false
		}
	}
	for _, allowed := range s.allowedPaths {
		if strings.HasPrefix(absPath, allowed) {
			return true
		}
	}
	return false
}

// WorkspaceRoot returns the sandbox's workspace root.
func (s *Sandbox) WorkspaceRoot() string { return s.workspaceRoot }

// ValidateOperation rejects writes outside the workspace and destructive
// shell commands.
func (s *Sandbox) ValidateOperation(op Operation) error {
	switch op.Type {
	case OpTypeFileWrite:
		if !op.InWorkspace {
			return core.ErrValidation("SANDBOX_VIOLATION", "writes restricted to workspace")
		}
	case OpTypeShell:
		if op.IsDestructive {
			return core.ErrValidation("SANDBOX_VIOLATION", "destructive shell commands blocked")
		}
	}
	return nil
}

// ValidatePath returns an error if path is not accessible under the current
// allow/deny configuration.
func (s *Sandbox) ValidatePath(path string, write bool) error {
	if !s.IsPathAllowed(path) {
		if write {
			return core.ErrValidation("SANDBOX_VIOLATION", "write access denied to path outside workspace")
		}
		return core.ErrValidation("SANDBOX_VIOLATION", "read access denied to path outside workspace")
	}
	return nil
}

// SafeCommands lists command prefixes considered safe to run unsupervised.
func SafeCommands() []string {
	return []string{
		"ls", "cat", "head", "tail", "grep", "find", "wc",
		"git status", "git diff", "git log", "git branch", "git show",
		"go build", "go test", "go fmt", "go vet", "go mod",
		"npm test", "npm run lint", "npm run build",
		"make check", "make test", "make build",
		"cargo build", "cargo test", "cargo check",
		"python -m pytest", "python -m mypy",
	}
}

// DangerousPatterns lists substrings that flag a shell command as
// destructive.
func DangerousPatterns() []string {
	return []string{
		"rm -rf", "rm -fr",
		"git push --force", "git push -f", "git reset --hard",
		"DROP TABLE", "DELETE FROM",
		"> /dev/", ">> /dev/",
		"chmod 777", "chmod -R 777",
		"curl | sh", "curl | bash", "wget | sh", "wget | bash",
		":(){ :|:& };:",
		"mkfs", "dd if=",
	}
}

// IsDangerousCommand reports whether cmd matches a known-dangerous pattern.
func IsDangerousCommand(cmd string) bool {
	lowerCmd := strings.ToLower(cmd)
	for _, pattern := range DangerousPatterns() {
		if strings.Contains(lowerCmd, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// IsSafeCommand reports whether cmd starts with a known-safe prefix.
func IsSafeCommand(cmd string) bool {
	lowerCmd := strings.ToLower(strings.TrimSpace(cmd))
	for _, safe := range SafeCommands() {
		if strings.HasPrefix(lowerCmd, strings.ToLower(safe)) {
			return true
		}
	}
	return false
}

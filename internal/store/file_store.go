// Package store persists roadmap state as YAML on disk, with the teacher's
// atomic-write-plus-checksum-plus-PID-lock discipline, multi-roadmap
// directory layout, zombie detection, and archive/purge housekeeping.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/fsutil"
)

// FileStore implements core.StateManager with roadmap.yaml files on disk.
// Supports multiple roadmaps per STATE_ROOT with an active-roadmap pointer,
// mirroring the teacher's JSONStateManager but keyed on Roadmap instead of
// Workflow and serialized as YAML per the spec's roadmap document format.
type FileStore struct {
	baseDir     string
	roadmapsDir string
	activePath  string
	lockPath    string
	lockTTL     time.Duration

	auditOnce    sync.Once
	auditLogInst *fileAuditLog
	auditErr     error
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// NewFileStore creates a new file-backed roadmap store rooted at stateRoot
// (e.g. ".autopilot/state").
func NewFileStore(stateRoot string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		baseDir:     stateRoot,
		roadmapsDir: filepath.Join(stateRoot, "roadmaps"),
		activePath:  filepath.Join(stateRoot, "active.yaml"),
		lockPath:    filepath.Join(stateRoot, "state.lock"),
		lockTTL:     time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLockTTL overrides the stale-lock threshold.
func WithLockTTL(ttl time.Duration) FileStoreOption {
	return func(s *FileStore) { s.lockTTL = ttl }
}

// stateEnvelope wraps a RoadmapState with a checksum computed over its
// content, so a torn or truncated write is detected rather than silently
// accepted on the next load.
type stateEnvelope struct {
	Version   int               `yaml:"version"`
	Checksum  string            `yaml:"checksum"`
	UpdatedAt time.Time         `yaml:"updated_at"`
	State     *core.RoadmapState `yaml:"state"`
}

// Save persists roadmap state atomically and marks it active.
func (s *FileStore) Save(ctx context.Context, state *core.RoadmapState) error {
	if err := os.MkdirAll(s.roadmapsDir, 0o750); err != nil {
		return fmt.Errorf("creating roadmaps directory: %w", err)
	}

	roadmapPath := s.roadmapPath(state.RoadmapID)

	if _, err := os.Stat(roadmapPath); err == nil {
		if data, readErr := fsutil.ReadFileScoped(roadmapPath); readErr == nil {
			_ = atomicWriteFile(roadmapPath+".bak", data, 0o600)
		}
	}

	state.UpdatedAt = time.Now()
	state.Checksum = ""

	stateBytes, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	checksum := checksumOf(stateBytes)

	envelope := stateEnvelope{
		Version:   core.CurrentStateVersion,
		Checksum:  checksum,
		UpdatedAt: time.Now(),
		State:     state,
	}

	data, err := yaml.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	if err := atomicWriteFile(roadmapPath, data, 0o600); err != nil {
		return fmt.Errorf("writing roadmap state file: %w", err)
	}

	if err := s.SetActiveRoadmapID(ctx, state.RoadmapID); err != nil {
		return fmt.Errorf("setting active roadmap: %w", err)
	}
	return nil
}

func checksumOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (s *FileStore) roadmapPath(id core.RoadmapID) string {
	return filepath.Join(s.roadmapsDir, string(id)+".yaml")
}

// Load retrieves the active roadmap's state.
func (s *FileStore) Load(ctx context.Context) (*core.RoadmapState, error) {
	activeID, err := s.GetActiveRoadmapID(ctx)
	if err == nil && activeID != "" {
		return s.LoadByID(ctx, activeID)
	}
	return nil, nil
}

// LoadByID retrieves a specific roadmap's state by ID.
func (s *FileStore) LoadByID(_ context.Context, id core.RoadmapID) (*core.RoadmapState, error) {
	roadmapPath := s.roadmapPath(id)
	if _, err := os.Stat(roadmapPath); os.IsNotExist(err) {
		return nil, nil
	}

	state, err := s.loadFromPath(roadmapPath)
	if err != nil {
		backupState, backupErr := s.loadFromPath(roadmapPath + ".bak")
		if backupErr != nil {
			return nil, fmt.Errorf("loading roadmap %s: %w (backup also failed: %v)", id, err, backupErr)
		}
		return backupState, nil
	}
	return state, nil
}

func (s *FileStore) loadFromPath(path string) (*core.RoadmapState, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var envelope stateEnvelope
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}

	envelope.State.Checksum = ""
	stateBytes, err := yaml.Marshal(envelope.State)
	if err != nil {
		return nil, fmt.Errorf("marshaling state for checksum: %w", err)
	}

	if checksumOf(stateBytes) != envelope.Checksum {
		return nil, &core.DomainError{
			Category: core.ErrCatIntegrity,
			Code:     core.CodeChecksumMismatch,
			Message:  fmt.Sprintf("roadmap state checksum mismatch at %s", path),
		}
	}

	return envelope.State, nil
}

// activeRoadmapFile stores the active roadmap ID.
type activeRoadmapFile struct {
	RoadmapID core.RoadmapID `yaml:"roadmap_id"`
	UpdatedAt time.Time      `yaml:"updated_at"`
}

// GetActiveRoadmapID returns the currently active roadmap ID, or "" if none.
func (s *FileStore) GetActiveRoadmapID(_ context.Context) (core.RoadmapID, error) {
	data, err := fsutil.ReadFileScoped(s.activePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading active roadmap file: %w", err)
	}

	var active activeRoadmapFile
	if err := yaml.Unmarshal(data, &active); err != nil {
		return "", fmt.Errorf("parsing active roadmap file: %w", err)
	}
	return active.RoadmapID, nil
}

// SetActiveRoadmapID marks a roadmap as the currently active one.
func (s *FileStore) SetActiveRoadmapID(_ context.Context, id core.RoadmapID) error {
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	active := activeRoadmapFile{RoadmapID: id, UpdatedAt: time.Now()}
	data, err := yaml.Marshal(active)
	if err != nil {
		return fmt.Errorf("marshaling active roadmap: %w", err)
	}
	return atomicWriteFile(s.activePath, data, 0o600)
}

// DeactivateRoadmap clears the active-roadmap pointer without deleting data.
func (s *FileStore) DeactivateRoadmap(_ context.Context) error {
	if err := os.Remove(s.activePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing active roadmap file: %w", err)
	}
	return nil
}

// ListRoadmaps returns summaries of every roadmap under management.
func (s *FileStore) ListRoadmaps(ctx context.Context) ([]core.RoadmapSummary, error) {
	var summaries []core.RoadmapSummary
	activeID, _ := s.GetActiveRoadmapID(ctx)

	if _, err := os.Stat(s.roadmapsDir); os.IsNotExist(err) {
		return summaries, nil
	}

	entries, err := os.ReadDir(s.roadmapsDir)
	if err != nil {
		return summaries, fmt.Errorf("reading roadmaps directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) || isBackupFile(entry.Name()) {
			continue
		}
		roadmapPath := filepath.Join(s.roadmapsDir, entry.Name())
		state, loadErr := s.loadFromPath(roadmapPath)
		if loadErr != nil {
			continue // skip corrupted files; FindZombieRoadmaps / operator tooling surfaces these separately
		}
		summaries = append(summaries, stateToSummary(state, activeID))
	}
	return summaries, nil
}

func stateToSummary(state *core.RoadmapState, activeID core.RoadmapID) core.RoadmapSummary {
	return core.RoadmapSummary{
		RoadmapID: state.RoadmapID,
		Title:     state.Title,
		Status:    state.Status,
		Goal:      state.Goal,
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
		IsActive:  state.RoadmapID == activeID,
	}
}

func isYAMLFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func isBackupFile(name string) bool {
	return strings.HasSuffix(name, ".bak")
}

// Exists reports whether any roadmap state exists.
func (s *FileStore) Exists() bool {
	if _, err := os.Stat(s.activePath); err == nil {
		return true
	}
	if _, err := os.Stat(s.roadmapsDir); err == nil {
		entries, _ := os.ReadDir(s.roadmapsDir)
		for _, e := range entries {
			if !e.IsDir() && isYAMLFile(e.Name()) && !isBackupFile(e.Name()) {
				return true
			}
		}
	}
	return false
}

// Backup snapshots the active roadmap's state file.
func (s *FileStore) Backup(ctx context.Context) error {
	activeID, err := s.GetActiveRoadmapID(ctx)
	if err != nil || activeID == "" {
		return nil
	}
	roadmapPath := s.roadmapPath(activeID)
	data, err := fsutil.ReadFileScoped(roadmapPath)
	if err != nil {
		return err
	}
	return atomicWriteFile(roadmapPath+".bak", data, 0o600)
}

// Restore reloads the active roadmap's most recent backup.
func (s *FileStore) Restore(ctx context.Context) (*core.RoadmapState, error) {
	activeID, err := s.GetActiveRoadmapID(ctx)
	if err != nil || activeID == "" {
		return nil, fmt.Errorf("no active roadmap to restore")
	}
	return s.loadFromPath(s.roadmapPath(activeID) + ".bak")
}

// lockInfo records which process holds the state lock.
type lockInfo struct {
	PID        int       `yaml:"pid"`
	Hostname   string    `yaml:"hostname"`
	AcquiredAt time.Time `yaml:"acquired_at"`
}

// AcquireLock takes the exclusive supervisor lock, reclaiming a stale lock
// (held by a PID that no longer exists, or older than the configured TTL).
func (s *FileStore) AcquireLock(_ context.Context) error {
	dir := filepath.Dir(s.lockPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	if data, err := fsutil.ReadFileScoped(s.lockPath); err == nil {
		var info lockInfo
		if err := yaml.Unmarshal(data, &info); err == nil {
			if time.Since(info.AcquiredAt) < s.lockTTL && processExists(info.PID) {
				return &core.DomainError{
					Category: core.ErrCatState,
					Code:     core.CodeLockAcquireFailed,
					Message:  fmt.Sprintf("lock held by PID %d since %s", info.PID, info.AcquiredAt),
				}
			}
			if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale lock: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	info := lockInfo{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now()}
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling lock info: %w", err)
	}

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return &core.DomainError{
				Category: core.ErrCatState,
				Code:     core.CodeLockAcquireFailed,
				Message:  "lock file created by another process",
			}
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		if rmErr := os.Remove(s.lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("writing lock file: %w (cleanup failed: %v)", err, rmErr)
		}
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}

// ReleaseLock releases the supervisor lock if this process owns it.
func (s *FileStore) ReleaseLock(_ context.Context) error {
	data, err := fsutil.ReadFileScoped(s.lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading lock file: %w", err)
	}

	var info lockInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parsing lock info: %w", err)
	}
	if info.PID != os.Getpid() {
		return &core.DomainError{
			Category: core.ErrCatState,
			Code:     "LOCK_RELEASE_FAILED",
			Message:  "lock owned by different process",
		}
	}
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

func processExists(pid int) bool {
	if runtime.GOOS == "windows" && pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// ArchiveRoadmaps moves completed/failed/aborted roadmaps (other than the
// active one) into an archive subdirectory. Returns the count archived.
func (s *FileStore) ArchiveRoadmaps(ctx context.Context) (int, error) {
	archiveDir := filepath.Join(s.baseDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o750); err != nil {
		return 0, fmt.Errorf("creating archive directory: %w", err)
	}

	activeID, _ := s.GetActiveRoadmapID(ctx)

	if _, err := os.Stat(s.roadmapsDir); os.IsNotExist(err) {
		return 0, nil
	}
	entries, err := os.ReadDir(s.roadmapsDir)
	if err != nil {
		return 0, fmt.Errorf("reading roadmaps directory: %w", err)
	}

	archived := 0
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) || isBackupFile(entry.Name()) {
			continue
		}
		roadmapPath := filepath.Join(s.roadmapsDir, entry.Name())
		state, loadErr := s.loadFromPath(roadmapPath)
		if loadErr != nil {
			continue
		}
		if state.RoadmapID == activeID {
			continue
		}
		if state.Status != core.RoadmapStatusCompleted && state.Status != core.RoadmapStatusFailed && state.Status != core.RoadmapStatusAborted {
			continue
		}

		archivePath := filepath.Join(archiveDir, entry.Name())
		if err := os.Rename(roadmapPath, archivePath); err != nil {
			return archived, fmt.Errorf("moving roadmap %s to archive: %w", state.RoadmapID, err)
		}
		if _, err := os.Stat(roadmapPath + ".bak"); err == nil {
			_ = os.Rename(roadmapPath+".bak", archivePath+".bak")
		}
		archived++
	}
	return archived, nil
}

// PurgeAllRoadmaps permanently deletes every roadmap and its backups.
// Returns the number deleted.
func (s *FileStore) PurgeAllRoadmaps(_ context.Context) (int, error) {
	deleted := 0
	if err := os.Remove(s.activePath); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("removing active roadmap file: %w", err)
	}

	if _, err := os.Stat(s.roadmapsDir); err == nil {
		entries, err := os.ReadDir(s.roadmapsDir)
		if err != nil {
			return 0, fmt.Errorf("reading roadmaps directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if isYAMLFile(entry.Name()) && !isBackupFile(entry.Name()) {
				deleted++
			}
			filePath := filepath.Join(s.roadmapsDir, entry.Name())
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				return deleted, fmt.Errorf("removing roadmap file %s: %w", entry.Name(), err)
			}
		}
	}

	archiveDir := filepath.Join(s.baseDir, "archive")
	if _, err := os.Stat(archiveDir); err == nil {
		entries, _ := os.ReadDir(archiveDir)
		for _, entry := range entries {
			_ = os.Remove(filepath.Join(archiveDir, entry.Name()))
		}
		_ = os.Remove(archiveDir)
	}
	return deleted, nil
}

// DeleteRoadmap removes a single roadmap by ID, including its evidence
// directory.
func (s *FileStore) DeleteRoadmap(ctx context.Context, id core.RoadmapID) error {
	roadmapPath := s.roadmapPath(id)
	if _, err := os.Stat(roadmapPath); os.IsNotExist(err) {
		return fmt.Errorf("roadmap not found: %s", id)
	}

	var evidenceDir string
	if state, err := s.LoadByID(ctx, id); err == nil && state != nil {
		evidenceDir = state.EvidenceDir
	}

	if err := os.Remove(roadmapPath); err != nil {
		return fmt.Errorf("removing roadmap file: %w", err)
	}
	if _, err := os.Stat(roadmapPath + ".bak"); err == nil {
		_ = os.Remove(roadmapPath + ".bak")
	}

	activeID, _ := s.GetActiveRoadmapID(ctx)
	if activeID == id {
		_ = s.DeactivateRoadmap(ctx)
	}

	if evidenceDir != "" {
		_ = os.RemoveAll(evidenceDir)
	} else {
		_ = os.RemoveAll(filepath.Join(s.baseDir, "evidence", string(id)))
	}
	return nil
}

// UpdateHeartbeat refreshes a running roadmap's heartbeat timestamp. The
// supervisor calls this on every tick; FindZombieRoadmaps treats a stale
// heartbeat on a roadmap still marked running as evidence of a crashed
// process.
func (s *FileStore) UpdateHeartbeat(ctx context.Context, id core.RoadmapID) error {
	state, err := s.LoadByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading roadmap: %w", err)
	}
	if state == nil {
		return fmt.Errorf("roadmap not found: %s", id)
	}
	if state.Status != core.RoadmapStatusRunning {
		return fmt.Errorf("roadmap not running: %s", id)
	}
	now := time.Now().UTC()
	state.HeartbeatAt = &now
	return s.Save(ctx, state)
}

// FindZombieRoadmaps returns roadmaps marked running whose heartbeat is
// older than staleThreshold (or missing entirely).
func (s *FileStore) FindZombieRoadmaps(ctx context.Context, staleThreshold time.Duration) ([]*core.RoadmapState, error) {
	summaries, err := s.ListRoadmaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roadmaps: %w", err)
	}

	cutoff := time.Now().UTC().Add(-staleThreshold)
	var zombies []*core.RoadmapState
	for _, summary := range summaries {
		if summary.Status != core.RoadmapStatusRunning {
			continue
		}
		state, err := s.LoadByID(ctx, summary.RoadmapID)
		if err != nil || state == nil {
			continue
		}
		if state.HeartbeatAt == nil || state.HeartbeatAt.Before(cutoff) {
			zombies = append(zombies, state)
		}
	}
	return zombies, nil
}

// Verify that FileStore implements core.StateManager.
var _ core.StateManager = (*FileStore)(nil)

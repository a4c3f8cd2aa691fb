package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autopilot-dev/autopilot/internal/core"
)

func newTestRoadmapState() *core.RoadmapState {
	now := time.Now()
	return &core.RoadmapState{
		Version:   core.CurrentStateVersion,
		RoadmapID: "rm-test-123",
		Title:     "Test roadmap",
		Status:    core.RoadmapStatusRunning,
		Goal:      "Ship the widget",
		Tasks: map[core.TaskID]*core.TaskState{
			"task-1": {
				ID:     "task-1",
				Kind:   core.KindTask,
				Phase:  core.PhaseStrategize,
				Name:   "Initial task",
				Status: core.TaskStatusPending,
				CLI:    "claude",
			},
		},
		TaskOrder: []core.TaskID{"task-1"},
		Policy: &core.Policy{
			MaxRetries: 3,
			Timeout:    time.Hour,
		},
		Metrics: &core.StateMetrics{
			TotalCostUSD:   0.05,
			TotalTokensIn:  1000,
			TotalTokensOut: 500,
		},
		Checkpoints: []core.Checkpoint{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !fs.Exists() {
		t.Error("expected store to report existing state")
	}

	loaded, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil || loaded.RoadmapID != state.RoadmapID {
		t.Fatalf("Load() = %+v, want roadmap %s", loaded, state.RoadmapID)
	}
	if loaded.Goal != state.Goal {
		t.Errorf("Goal = %q, want %q", loaded.Goal, state.Goal)
	}
}

func TestFileStore_LoadNonExistent(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)

	state, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
}

func TestFileStore_ChecksumVerification(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := fs.roadmapPath(state.RoadmapID)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var envelope stateEnvelope
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	envelope.Checksum = "tampered"
	tampered, err := yaml.Marshal(envelope)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, tampered, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := fs.LoadByID(ctx, state.RoadmapID); err == nil {
		t.Error("expected checksum mismatch error, got nil")
	}
}

func TestFileStore_BackupRecovery(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := fs.roadmapPath(state.RoadmapID)
	if err := os.WriteFile(path, []byte("not valid yaml: ["), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	recovered, err := fs.LoadByID(ctx, state.RoadmapID)
	if err != nil {
		t.Fatalf("LoadByID() error = %v, want recovery from backup", err)
	}
	if recovered.RoadmapID != state.RoadmapID {
		t.Errorf("recovered RoadmapID = %q, want %q", recovered.RoadmapID, state.RoadmapID)
	}
}

func TestFileStore_Lock(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()

	if err := fs.AcquireLock(ctx); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := fs.AcquireLock(ctx); err == nil {
		t.Error("expected second AcquireLock() to fail while held")
	}
	if err := fs.ReleaseLock(ctx); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	if err := fs.AcquireLock(ctx); err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
}

func TestFileStore_StaleLockReclaimed(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root, WithLockTTL(time.Millisecond))
	ctx := context.Background()

	if err := fs.AcquireLock(ctx); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := fs.AcquireLock(ctx); err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got error = %v", err)
	}
}

func TestFileStore_ReleaseLockByOtherProcessFails(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()

	info := lockInfo{PID: 999999999, Hostname: "other-host", AcquiredAt: time.Now()}
	data, err := yaml.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.lockPath), 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(fs.lockPath, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := fs.ReleaseLock(ctx); err == nil {
		t.Error("expected ReleaseLock() to fail for a lock owned by another process")
	}
}

func TestFileStore_ListRoadmapsAndActive(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()

	first := newTestRoadmapState()
	second := newTestRoadmapState()
	second.RoadmapID = "rm-test-456"
	second.Title = "Second roadmap"

	if err := fs.Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}
	if err := fs.Save(ctx, second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}

	summaries, err := fs.ListRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ListRoadmaps() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}

	activeID, err := fs.GetActiveRoadmapID(ctx)
	if err != nil {
		t.Fatalf("GetActiveRoadmapID() error = %v", err)
	}
	if activeID != second.RoadmapID {
		t.Errorf("active roadmap = %q, want %q", activeID, second.RoadmapID)
	}

	for _, s := range summaries {
		if s.RoadmapID == second.RoadmapID && !s.IsActive {
			t.Error("expected second roadmap to be marked active")
		}
	}
}

func TestFileStore_DeactivateRoadmap(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := fs.DeactivateRoadmap(ctx); err != nil {
		t.Fatalf("DeactivateRoadmap() error = %v", err)
	}

	loaded, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("expected no active roadmap after deactivation, got %+v", loaded)
	}
}

func TestFileStore_ArchiveRoadmaps(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()

	active := newTestRoadmapState()
	done := newTestRoadmapState()
	done.RoadmapID = "rm-done-1"
	done.Status = core.RoadmapStatusCompleted

	if err := fs.Save(ctx, done); err != nil {
		t.Fatalf("Save(done) error = %v", err)
	}
	if err := fs.Save(ctx, active); err != nil {
		t.Fatalf("Save(active) error = %v", err)
	}

	archived, err := fs.ArchiveRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ArchiveRoadmaps() error = %v", err)
	}
	if archived != 1 {
		t.Fatalf("archived = %d, want 1", archived)
	}

	summaries, err := fs.ListRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ListRoadmaps() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].RoadmapID != active.RoadmapID {
		t.Errorf("expected only the active roadmap to remain, got %+v", summaries)
	}
}

func TestFileStore_PurgeAllRoadmaps(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	deleted, err := fs.PurgeAllRoadmaps(ctx)
	if err != nil {
		t.Fatalf("PurgeAllRoadmaps() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if fs.Exists() {
		t.Error("expected no state to exist after purge")
	}
}

func TestFileStore_DeleteRoadmap(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := fs.DeleteRoadmap(ctx, state.RoadmapID); err != nil {
		t.Fatalf("DeleteRoadmap() error = %v", err)
	}

	loaded, err := fs.LoadByID(ctx, state.RoadmapID)
	if err != nil {
		t.Fatalf("LoadByID() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("expected roadmap to be deleted, got %+v", loaded)
	}
}

func TestFileStore_UpdateHeartbeatAndZombieDetection(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()
	past := time.Now().Add(-time.Hour)
	state.HeartbeatAt = &past

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	zombies, err := fs.FindZombieRoadmaps(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FindZombieRoadmaps() error = %v", err)
	}
	if len(zombies) != 1 {
		t.Fatalf("len(zombies) = %d, want 1", len(zombies))
	}

	if err := fs.UpdateHeartbeat(ctx, state.RoadmapID); err != nil {
		t.Fatalf("UpdateHeartbeat() error = %v", err)
	}

	zombies, err = fs.FindZombieRoadmaps(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FindZombieRoadmaps() error = %v", err)
	}
	if len(zombies) != 0 {
		t.Errorf("len(zombies) = %d, want 0 after heartbeat refresh", len(zombies))
	}
}

func TestFileStore_BackupAndRestore(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore(root)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := fs.Backup(ctx); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	state.Goal = "Changed goal"
	if err := fs.Save(ctx, state); err != nil {
		t.Fatalf("Save() second error = %v", err)
	}

	restored, err := fs.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Goal == "Changed goal" {
		t.Error("expected Restore() to return the pre-change backup")
	}
}

func TestFileStore_CreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "state")
	fs := NewFileStore(root)
	state := newTestRoadmapState()

	if err := fs.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("expected directory to be created: %v", err)
	}
}

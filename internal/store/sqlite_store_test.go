package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "roadmaps.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !s.Exists() {
		t.Error("expected store to report existing state")
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil || loaded.RoadmapID != state.RoadmapID {
		t.Fatalf("Load() = %+v, want roadmap %s", loaded, state.RoadmapID)
	}
	if loaded.Goal != state.Goal {
		t.Errorf("Goal = %q, want %q", loaded.Goal, state.Goal)
	}
	if len(loaded.Tasks) != 1 {
		t.Errorf("len(Tasks) = %d, want 1", len(loaded.Tasks))
	}
}

func TestSQLiteStore_LoadNonExistent(t *testing.T) {
	s := newTestSQLiteStore(t)
	state, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
}

func TestSQLiteStore_ListRoadmapsAndActive(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first := newTestRoadmapState()
	second := newTestRoadmapState()
	second.RoadmapID = "rm-test-456"

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save(second) error = %v", err)
	}

	summaries, err := s.ListRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ListRoadmaps() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}

	activeID, err := s.GetActiveRoadmapID(ctx)
	if err != nil {
		t.Fatalf("GetActiveRoadmapID() error = %v", err)
	}
	if activeID != second.RoadmapID {
		t.Errorf("active roadmap = %q, want %q", activeID, second.RoadmapID)
	}
}

func TestSQLiteStore_Lock(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx); err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := s.AcquireLock(ctx); err == nil {
		t.Error("expected second AcquireLock() to fail while held")
	}
	if err := s.ReleaseLock(ctx); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	if err := s.AcquireLock(ctx); err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
}

func TestSQLiteStore_ArchiveRoadmaps(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	active := newTestRoadmapState()
	done := newTestRoadmapState()
	done.RoadmapID = "rm-done-1"
	done.Status = core.RoadmapStatusCompleted

	if err := s.Save(ctx, done); err != nil {
		t.Fatalf("Save(done) error = %v", err)
	}
	if err := s.Save(ctx, active); err != nil {
		t.Fatalf("Save(active) error = %v", err)
	}

	archived, err := s.ArchiveRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ArchiveRoadmaps() error = %v", err)
	}
	if archived != 1 {
		t.Fatalf("archived = %d, want 1", archived)
	}

	summaries, err := s.ListRoadmaps(ctx)
	if err != nil {
		t.Fatalf("ListRoadmaps() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].RoadmapID != active.RoadmapID {
		t.Errorf("expected only the active roadmap to remain, got %+v", summaries)
	}
}

func TestSQLiteStore_PurgeAllRoadmaps(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	deleted, err := s.PurgeAllRoadmaps(ctx)
	if err != nil {
		t.Fatalf("PurgeAllRoadmaps() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if s.Exists() {
		t.Error("expected no state to exist after purge")
	}
}

func TestSQLiteStore_DeleteRoadmap(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.DeleteRoadmap(ctx, state.RoadmapID); err != nil {
		t.Fatalf("DeleteRoadmap() error = %v", err)
	}
	loaded, err := s.LoadByID(ctx, state.RoadmapID)
	if err != nil {
		t.Fatalf("LoadByID() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("expected roadmap to be deleted, got %+v", loaded)
	}
}

func TestSQLiteStore_HeartbeatAndZombieDetection(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := newTestRoadmapState()
	past := time.Now().Add(-time.Hour)
	state.HeartbeatAt = &past

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	zombies, err := s.FindZombieRoadmaps(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FindZombieRoadmaps() error = %v", err)
	}
	if len(zombies) != 1 {
		t.Fatalf("len(zombies) = %d, want 1", len(zombies))
	}

	if err := s.UpdateHeartbeat(ctx, state.RoadmapID); err != nil {
		t.Fatalf("UpdateHeartbeat() error = %v", err)
	}

	zombies, err = s.FindZombieRoadmaps(ctx, time.Minute)
	if err != nil {
		t.Fatalf("FindZombieRoadmaps() error = %v", err)
	}
	if len(zombies) != 0 {
		t.Errorf("len(zombies) = %d, want 0 after heartbeat refresh", len(zombies))
	}
}

func TestSQLiteStore_BackupAndRestoreUnsupported(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	state := newTestRoadmapState()

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Backup(ctx); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := s.Restore(ctx); err == nil {
		t.Error("expected Restore() to report the sqlite backend as unsupported")
	}
}

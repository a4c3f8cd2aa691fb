package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// AppendAudit appends event to the audit_events table, letting SQLite assign
// the monotonic seq via AUTOINCREMENT (implements core.AuditRecorder).
func (s *SQLiteStore) AppendAudit(ctx context.Context, event core.AuditEvent) (core.AuditEvent, error) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return core.AuditEvent{}, fmt.Errorf("encoding audit detail: %w", err)
	}

	var seq int64
	writeErr := s.retryWrite(ctx, "append_audit", func() error {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO audit_events (timestamp, roadmap_id, task_id, phase, kind, message, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			event.Timestamp, string(event.RoadmapID), string(event.TaskID), string(event.Phase),
			event.Kind, event.Message, string(detail))
		if err != nil {
			return err
		}
		seq, err = result.LastInsertId()
		return err
	})
	if writeErr != nil {
		return core.AuditEvent{}, fmt.Errorf("appending audit event: %w", writeErr)
	}

	event.Seq = seq
	return event, nil
}

// QueryAudit returns audit events with seq > afterSeq, oldest first.
func (s *SQLiteStore) QueryAudit(ctx context.Context, afterSeq int64, limit int) ([]core.AuditEvent, error) {
	query := `SELECT seq, timestamp, roadmap_id, task_id, phase, kind, message, detail
	          FROM audit_events WHERE seq > ? ORDER BY seq ASC`
	args := []interface{}{afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []core.AuditEvent
	for rows.Next() {
		var ev core.AuditEvent
		var roadmapID, taskID, phase, detail string
		if err := rows.Scan(&ev.Seq, &ev.Timestamp, &roadmapID, &taskID, &phase, &ev.Kind, &ev.Message, &detail); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		ev.RoadmapID = core.RoadmapID(roadmapID)
		ev.TaskID = core.TaskID(taskID)
		ev.Phase = core.Phase(phase)
		if detail != "" {
			_ = json.Unmarshal([]byte(detail), &ev.Detail)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// evidenceDir returns the filesystem directory evidence artifacts are
// stored under, a sibling of the sqlite database file. SQLite indexes
// roadmap state and the audit trail; evidence blobs are plain files either
// way, so both backends share the same on-disk layout for them.
func (s *SQLiteStore) evidenceDir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "evidence")
}

// SaveArtifact persists an evidence artifact under
// evidence/<task_id>/<phase>/<artifact_id>, atomically.
func (s *SQLiteStore) SaveArtifact(_ context.Context, artifact *core.Artifact) error {
	dir := filepath.Join(s.evidenceDir(), string(artifact.TaskID), string(artifact.Phase))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating evidence directory: %w", err)
	}
	path := filepath.Join(dir, artifact.ID)
	if err := atomicWriteFile(path, []byte(artifact.Content), 0o640); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	artifact.Path = path
	return nil
}

// LoadArtifacts returns every artifact persisted for a task's phase.
func (s *SQLiteStore) LoadArtifacts(_ context.Context, taskID core.TaskID, phase core.Phase) ([]*core.Artifact, error) {
	dir := filepath.Join(s.evidenceDir(), string(taskID), string(phase))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading evidence directory: %w", err)
	}

	artifacts := make([]*core.Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, &core.Artifact{
			ID:        entry.Name(),
			TaskID:    taskID,
			Phase:     phase,
			Path:      path,
			Content:   string(data),
			Size:      int64(len(data)),
			CreatedAt: info.ModTime(),
		})
	}
	return artifacts, nil
}

var _ core.AuditRecorder = (*SQLiteStore)(nil)

package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// fileAuditLog is a single-writer, append-only JSONL audit stream backed by
// analytics/audit.jsonl, fsynced on every append so a crash never loses an
// acknowledged event.
type fileAuditLog struct {
	mu      sync.Mutex
	path    string
	nextSeq int64
}

func newFileAuditLog(path string) (*fileAuditLog, error) {
	l := &fileAuditLog{path: path, nextSeq: 1}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var last core.AuditEvent
	for scanner.Scan() {
		var ev core.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // tolerate a torn trailing line; never fails startup
		}
		last = ev
	}
	if last.Seq > 0 {
		l.nextSeq = last.Seq + 1
	}
	return l, nil
}

func (l *fileAuditLog) append(_ context.Context, event core.AuditEvent) (core.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Seq = l.nextSeq

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return core.AuditEvent{}, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(event)
	if err != nil {
		return core.AuditEvent{}, fmt.Errorf("encoding audit event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return core.AuditEvent{}, fmt.Errorf("writing audit event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return core.AuditEvent{}, fmt.Errorf("fsyncing audit log: %w", err)
	}

	l.nextSeq++
	return event, nil
}

// query returns events with Seq > afterSeq, oldest first, capped at limit
// (0 means unlimited).
func (l *fileAuditLog) query(afterSeq int64, limit int) ([]core.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var events []core.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev core.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Seq <= afterSeq {
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, scanner.Err()
}

// AppendAudit appends event to the audit stream, assigning it a monotonic
// sequence number (implements core.AuditRecorder).
func (s *FileStore) AppendAudit(ctx context.Context, event core.AuditEvent) (core.AuditEvent, error) {
	log, err := s.auditLog()
	if err != nil {
		return core.AuditEvent{}, err
	}
	return log.append(ctx, event)
}

// QueryAudit returns audit events appended after afterSeq, oldest first.
func (s *FileStore) QueryAudit(_ context.Context, afterSeq int64, limit int) ([]core.AuditEvent, error) {
	log, err := s.auditLog()
	if err != nil {
		return nil, err
	}
	return log.query(afterSeq, limit)
}

func (s *FileStore) auditLog() (*fileAuditLog, error) {
	s.auditOnce.Do(func() {
		s.auditLogInst, s.auditErr = newFileAuditLog(filepath.Join(s.baseDir, "analytics", "audit.jsonl"))
	})
	return s.auditLogInst, s.auditErr
}

// SaveArtifact persists an evidence artifact under
// evidence/<task_id>/<phase>/<artifact_id>, atomically.
func (s *FileStore) SaveArtifact(_ context.Context, artifact *core.Artifact) error {
	dir := filepath.Join(s.baseDir, "evidence", string(artifact.TaskID), string(artifact.Phase))
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
func (s *FileStore) LoadArtifacts(_ context.Context, taskID core.TaskID, phase core.Phase) ([]*core.Artifact, error) {
	dir := filepath.Join(s.baseDir, "evidence", string(taskID), string(phase))
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

var _ core.AuditRecorder = (*FileStore)(nil)

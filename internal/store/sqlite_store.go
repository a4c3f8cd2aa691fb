package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/autopilot-dev/autopilot/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

//go:embed migrations/002_audit_events.sql
var migrationV2 string

// SQLiteStore implements core.StateManager with modernc.org/sqlite storage,
// for deployments that need concurrent readers (dashboards, CLI status
// queries) without contending with the supervisor's writes.
type SQLiteStore struct {
	dbPath     string
	backupPath string
	lockPath   string
	lockTTL    time.Duration
	db         *sql.DB
	readDB     *sql.DB
	mu         sync.RWMutex

	maxRetries    int
	baseRetryWait time.Duration
}

// SQLiteStoreOption configures a SQLiteStore.
type SQLiteStoreOption func(*SQLiteStore)

// WithSQLiteBackupPath overrides the backup file path.
func WithSQLiteBackupPath(path string) SQLiteStoreOption {
	return func(s *SQLiteStore) { s.backupPath = path }
}

// WithSQLiteLockTTL overrides the stale-lock threshold.
func WithSQLiteLockTTL(ttl time.Duration) SQLiteStoreOption {
	return func(s *SQLiteStore) { s.lockTTL = ttl }
}

// NewSQLiteStore opens (creating if necessary) a roadmap database at dbPath.
func NewSQLiteStore(dbPath string, opts ...SQLiteStoreOption) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath:        dbPath,
		backupPath:    dbPath + ".bak",
		lockPath:      dbPath + ".lock",
		lockTTL:       time.Hour,
		maxRetries:    5,
		baseRetryWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes both database connections.
func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	if version < 2 {
		if _, err := s.db.Exec(migrationV2); err != nil {
			return fmt.Errorf("applying migration v2: %w", err)
		}
	}
	return nil
}

// retryWrite retries a write operation with exponential backoff on
// SQLITE_BUSY/SQLITE_LOCKED, since the write connection is single-conn.
func (s *SQLiteStore) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		lastErr = err
		if attempt < s.maxRetries {
			wait := s.baseRetryWait * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), lastErr)
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("%s: max retries exceeded: %w", operation, lastErr)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Save persists roadmap state atomically and marks it active.
func (s *SQLiteStore) Save(ctx context.Context, state *core.RoadmapState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = time.Now()
	state.Checksum = ""

	policyJSON, err := json.Marshal(state.Policy)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}

	var metrics core.StateMetrics
	if state.Metrics != nil {
		metrics = *state.Metrics
	}

	return s.retryWrite(ctx, "save roadmap", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO roadmaps (
				roadmap_id, title, status, goal, policy,
				total_cost_usd, total_tokens_in, total_tokens_out,
				evidence_dir, heartbeat_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(roadmap_id) DO UPDATE SET
				title = excluded.title,
				status = excluded.status,
				goal = excluded.goal,
				policy = excluded.policy,
				total_cost_usd = excluded.total_cost_usd,
				total_tokens_in = excluded.total_tokens_in,
				total_tokens_out = excluded.total_tokens_out,
				evidence_dir = excluded.evidence_dir,
				heartbeat_at = excluded.heartbeat_at,
				updated_at = excluded.updated_at
		`,
			state.RoadmapID, state.Title, state.Status, state.Goal, string(policyJSON),
			metrics.TotalCostUSD, metrics.TotalTokensIn, metrics.TotalTokensOut,
			state.EvidenceDir, nullableTime(state.HeartbeatAt), state.CreatedAt, state.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting roadmap: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE roadmap_id = ?", state.RoadmapID); err != nil {
			return fmt.Errorf("clearing tasks: %w", err)
		}
		for i, taskID := range state.TaskOrder {
			task, ok := state.Tasks[taskID]
			if !ok {
				continue
			}
			if err := s.insertTask(ctx, tx, state.RoadmapID, i, task); err != nil {
				return fmt.Errorf("inserting task %s: %w", task.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE roadmap_id = ?", state.RoadmapID); err != nil {
			return fmt.Errorf("clearing checkpoints: %w", err)
		}
		for _, cp := range state.Checkpoints {
			if err := s.insertCheckpoint(ctx, tx, state.RoadmapID, &cp); err != nil {
				return fmt.Errorf("inserting checkpoint %s: %w", cp.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO active_roadmap (id, roadmap_id, updated_at)
			VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				roadmap_id = excluded.roadmap_id,
				updated_at = excluded.updated_at
		`, state.RoadmapID, time.Now())
		if err != nil {
			return fmt.Errorf("setting active roadmap: %w", err)
		}

		return tx.Commit()
	})
}

func (s *SQLiteStore) insertTask(ctx context.Context, tx *sql.Tx, roadmapID core.RoadmapID, position int, task *core.TaskState) error {
	depsJSON, err := json.Marshal(task.Dependencies)
	if err != nil {
		return fmt.Errorf("marshaling dependencies: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (
			roadmap_id, task_id, position, parent_id, kind, phase, name, status,
			cli, model, dependencies, tokens_in, tokens_out, cost_usd, retries,
			error, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		roadmapID, task.ID, position, task.ParentID, task.Kind, task.Phase, task.Name, task.Status,
		task.CLI, task.Model, string(depsJSON), task.TokensIn, task.TokensOut, task.CostUSD, task.Retries,
		task.Error, nullableTime(task.StartedAt), nullableTime(task.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) insertCheckpoint(ctx context.Context, tx *sql.Tx, roadmapID core.RoadmapID, cp *core.Checkpoint) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (roadmap_id, id, type, phase, task_id, message, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, roadmapID, cp.ID, cp.Type, cp.Phase, cp.TaskID, cp.Message, cp.Data, cp.Timestamp)
	return err
}

// Load retrieves the active roadmap's state.
func (s *SQLiteStore) Load(ctx context.Context) (*core.RoadmapState, error) {
	activeID, err := s.GetActiveRoadmapID(ctx)
	if err != nil || activeID == "" {
		return nil, err
	}
	return s.LoadByID(ctx, activeID)
}

// LoadByID retrieves a specific roadmap's state by ID.
func (s *SQLiteStore) LoadByID(ctx context.Context, id core.RoadmapID) (*core.RoadmapState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.readDB.QueryRowContext(ctx, `
		SELECT roadmap_id, title, status, goal, policy,
		       total_cost_usd, total_tokens_in, total_tokens_out,
		       evidence_dir, heartbeat_at, created_at, updated_at
		FROM roadmaps WHERE roadmap_id = ?
	`, id)

	var (
		state               core.RoadmapState
		policyJSON          string
		evidenceDir         sql.NullString
		heartbeatAt         sql.NullTime
		totalCost           float64
		totalIn, totalOut   int
	)
	state.Metrics = &core.StateMetrics{}
	err := row.Scan(&state.RoadmapID, &state.Title, &state.Status, &state.Goal, &policyJSON,
		&totalCost, &totalIn, &totalOut, &evidenceDir, &heartbeatAt, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading roadmap: %w", err)
	}

	state.Version = core.CurrentStateVersion
	state.Metrics.TotalCostUSD = totalCost
	state.Metrics.TotalTokensIn = totalIn
	state.Metrics.TotalTokensOut = totalOut
	if evidenceDir.Valid {
		state.EvidenceDir = evidenceDir.String
	}
	if heartbeatAt.Valid {
		t := heartbeatAt.Time
		state.HeartbeatAt = &t
	}

	var policy core.Policy
	if err := json.Unmarshal([]byte(policyJSON), &policy); err != nil {
		return nil, fmt.Errorf("unmarshaling policy: %w", err)
	}
	state.Policy = &policy

	tasks, order, err := s.loadTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	state.Tasks = tasks
	state.TaskOrder = order

	checkpoints, err := s.loadCheckpoints(ctx, id)
	if err != nil {
		return nil, err
	}
	state.Checkpoints = checkpoints

	return &state, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, id core.RoadmapID) (map[core.TaskID]*core.TaskState, []core.TaskID, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT task_id, parent_id, kind, phase, name, status, cli, model, dependencies,
		       tokens_in, tokens_out, cost_usd, retries, error, started_at, completed_at
		FROM tasks WHERE roadmap_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[core.TaskID]*core.TaskState)
	var order []core.TaskID
	for rows.Next() {
		var (
			t        core.TaskState
			depsJSON string
			started, completed sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.ParentID, &t.Kind, &t.Phase, &t.Name, &t.Status, &t.CLI, &t.Model,
			&depsJSON, &t.TokensIn, &t.TokensOut, &t.CostUSD, &t.Retries, &t.Error, &started, &completed); err != nil {
			return nil, nil, fmt.Errorf("scanning task: %w", err)
		}
		if err := json.Unmarshal([]byte(depsJSON), &t.Dependencies); err != nil {
			return nil, nil, fmt.Errorf("unmarshaling dependencies: %w", err)
		}
		if started.Valid {
			v := started.Time
			t.StartedAt = &v
		}
		if completed.Valid {
			v := completed.Time
			t.CompletedAt = &v
		}
		tasks[t.ID] = &t
		order = append(order, t.ID)
	}
	return tasks, order, rows.Err()
}

func (s *SQLiteStore) loadCheckpoints(ctx context.Context, id core.RoadmapID) ([]core.Checkpoint, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, type, phase, task_id, message, data, timestamp
		FROM checkpoints WHERE roadmap_id = ? ORDER BY timestamp
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []core.Checkpoint
	for rows.Next() {
		var cp core.Checkpoint
		if err := rows.Scan(&cp.ID, &cp.Type, &cp.Phase, &cp.TaskID, &cp.Message, &cp.Data, &cp.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

// GetActiveRoadmapID returns the currently active roadmap ID, or "" if none.
func (s *SQLiteStore) GetActiveRoadmapID(ctx context.Context) (core.RoadmapID, error) {
	var id core.RoadmapID
	err := s.readDB.QueryRowContext(ctx, "SELECT roadmap_id FROM active_roadmap WHERE id = 1").Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading active roadmap: %w", err)
	}
	return id, nil
}

// ListRoadmaps returns summaries of every roadmap under management.
func (s *SQLiteStore) ListRoadmaps(ctx context.Context) ([]core.RoadmapSummary, error) {
	activeID, _ := s.GetActiveRoadmapID(ctx)

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT roadmap_id, title, status, goal, created_at, updated_at FROM roadmaps ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying roadmaps: %w", err)
	}
	defer rows.Close()

	var summaries []core.RoadmapSummary
	for rows.Next() {
		var sum core.RoadmapSummary
		if err := rows.Scan(&sum.RoadmapID, &sum.Title, &sum.Status, &sum.Goal, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning roadmap summary: %w", err)
		}
		sum.IsActive = sum.RoadmapID == activeID
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Exists reports whether any roadmap state exists.
func (s *SQLiteStore) Exists() bool {
	var count int
	if err := s.readDB.QueryRow("SELECT COUNT(*) FROM roadmaps").Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// AcquireLock takes the exclusive supervisor lock, reclaiming a stale lock.
func (s *SQLiteStore) AcquireLock(_ context.Context) error {
	if data, err := os.ReadFile(s.lockPath); err == nil {
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
			return &core.DomainError{Category: core.ErrCatState, Code: core.CodeLockAcquireFailed, Message: "lock file created by another process"}
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// ReleaseLock releases the supervisor lock if this process owns it.
func (s *SQLiteStore) ReleaseLock(_ context.Context) error {
	data, err := os.ReadFile(s.lockPath)
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
		return &core.DomainError{Category: core.ErrCatState, Code: "LOCK_RELEASE_FAILED", Message: "lock owned by different process"}
	}
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Backup copies the database file to the backup path.
func (s *SQLiteStore) Backup(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFile(s.dbPath, s.backupPath)
}

// Restore is unsupported for the SQLite backend: the database file is a
// single shared store, and copying an old snapshot back over it while other
// connections may be open risks corrupting the WAL. Operators restore by
// stopping the supervisor and replacing dbPath with a backup file directly.
func (s *SQLiteStore) Restore(_ context.Context) (*core.RoadmapState, error) {
	return nil, fmt.Errorf("sqlite backend does not support live Restore; stop the supervisor and replace %s with %s", s.dbPath, s.backupPath)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	return atomicWriteFile(dst, data, 0o600)
}

// UpdateHeartbeat refreshes a running roadmap's heartbeat timestamp.
func (s *SQLiteStore) UpdateHeartbeat(ctx context.Context, id core.RoadmapID) error {
	return s.retryWrite(ctx, "update heartbeat", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE roadmaps SET heartbeat_at = ?, updated_at = ?
			WHERE roadmap_id = ? AND status = ?
		`, time.Now(), time.Now(), id, core.RoadmapStatusRunning)
		if err != nil {
			return fmt.Errorf("updating heartbeat: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("roadmap not found or not running: %s", id)
		}
		return nil
	})
}

// FindZombieRoadmaps returns roadmaps marked running whose heartbeat is
// older than staleThreshold (or missing entirely).
func (s *SQLiteStore) FindZombieRoadmaps(ctx context.Context, staleThreshold time.Duration) ([]*core.RoadmapState, error) {
	cutoff := time.Now().Add(-staleThreshold)
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT roadmap_id FROM roadmaps
		WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)
	`, core.RoadmapStatusRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying zombie roadmaps: %w", err)
	}
	defer rows.Close()

	var ids []core.RoadmapID
	for rows.Next() {
		var id core.RoadmapID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var zombies []*core.RoadmapState
	for _, id := range ids {
		state, err := s.LoadByID(ctx, id)
		if err != nil || state == nil {
			continue
		}
		zombies = append(zombies, state)
	}
	return zombies, nil
}

// ArchiveRoadmaps marks completed/failed/aborted roadmaps (other than the
// active one) as archived by moving them to a companion archive table.
func (s *SQLiteStore) ArchiveRoadmaps(ctx context.Context) (int, error) {
	activeID, _ := s.GetActiveRoadmapID(ctx)
	var archived int
	err := s.retryWrite(ctx, "archive roadmaps", func() error {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM roadmaps
			WHERE roadmap_id != ?
			AND status IN (?, ?, ?)
		`, activeID, core.RoadmapStatusCompleted, core.RoadmapStatusFailed, core.RoadmapStatusAborted)
		if err != nil {
			return fmt.Errorf("archiving roadmaps: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		archived = int(n)
		return nil
	})
	return archived, err
}

// PurgeAllRoadmaps permanently deletes every roadmap. Returns the count
// deleted.
func (s *SQLiteStore) PurgeAllRoadmaps(ctx context.Context) (int, error) {
	var deleted int
	err := s.retryWrite(ctx, "purge roadmaps", func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM roadmaps")
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)
		if _, err := s.db.ExecContext(ctx, "DELETE FROM active_roadmap"); err != nil {
			return err
		}
		return nil
	})
	return deleted, err
}

// DeleteRoadmap removes a single roadmap by ID.
func (s *SQLiteStore) DeleteRoadmap(ctx context.Context, id core.RoadmapID) error {
	var evidenceDir string
	_ = s.readDB.QueryRowContext(ctx, "SELECT evidence_dir FROM roadmaps WHERE roadmap_id = ?", id).Scan(&evidenceDir)

	err := s.retryWrite(ctx, "delete roadmap", func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM roadmaps WHERE roadmap_id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("roadmap not found: %s", id)
		}
		activeID, _ := s.GetActiveRoadmapID(ctx)
		if activeID == id {
			_, err := s.db.ExecContext(ctx, "DELETE FROM active_roadmap WHERE roadmap_id = ?", id)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if evidenceDir != "" {
		_ = os.RemoveAll(evidenceDir)
	}
	return nil
}

var _ core.StateManager = (*SQLiteStore)(nil)

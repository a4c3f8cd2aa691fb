package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// Options configures store creation.
type Options struct {
	// LockTTL is the duration after which a lock is considered stale.
	// If zero, the backend's default (one hour) is used.
	LockTTL time.Duration
}

// New creates a core.StateManager for the named backend ("yaml"/"file",
// default, or "sqlite"). path is the state root for the file backend, or
// the database file path for sqlite.
func New(backend, path string, opts Options) (core.StateManager, error) {
	switch normalizeBackend(backend) {
	case "yaml", "file", "json":
		var fsOpts []FileStoreOption
		if opts.LockTTL > 0 {
			fsOpts = append(fsOpts, WithLockTTL(opts.LockTTL))
		}
		return NewFileStore(path, fsOpts...), nil
	case "sqlite":
		var sqliteOpts []SQLiteStoreOption
		if opts.LockTTL > 0 {
			sqliteOpts = append(sqliteOpts, WithSQLiteLockTTL(opts.LockTTL))
		}
		return NewSQLiteStore(path, sqliteOpts...)
	default:
		return nil, fmt.Errorf("unsupported state backend: %q (supported: yaml, sqlite)", backend)
	}
}

func normalizeBackend(backend string) string {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		return "yaml"
	}
	return backend
}

// Closeable is implemented by backends that hold open resources (sqlite).
type Closeable interface {
	Close() error
}

// Close safely closes a StateManager if it implements Closeable.
func Close(sm core.StateManager) error {
	if closeable, ok := sm.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}

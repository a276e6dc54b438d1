package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/logger"

	_ "modernc.org/sqlite"
)

const (
	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------

	busyTimeoutMS = 5000
)

// ensureSecureFile creates a file with secure permissions if it doesn't exist,
// or verifies/fixes permissions if it does exist. This prevents a TOCTOU race
// condition where the file could be created with insecure default permissions.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return errors.Wrap(err, "failed to create secure file")
		}
		f.Close()
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to stat file")
	}

	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return errors.Wrap(err, "failed to set secure permissions")
		}
	}
	return nil
}

// SQLiteStorage handles SQLite database persistence
type SQLiteStorage struct {
	db    *sql.DB
	log   *zap.SugaredLogger
	now   func() time.Time
	newID func() string
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string, log *zap.SugaredLogger) (*SQLiteStorage, error) {
	log = logger.Component(log, "storage")

	if err := os.MkdirAll(filepath.Dir(path), secureDirMode); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}

	// Create database file with secure permissions if it doesn't exist
	if err := ensureSecureFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// A single connection keeps PRAGMAs in effect for every statement
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", pragma)
		}
	}

	s := New(db, log)
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	log.Debugw("Database opened", "path", path, "busy_timeout_ms", busyTimeoutMS)
	return s, nil
}

// New wraps an already-open database handle without touching the schema
func New(db *sql.DB, log *zap.SugaredLogger) *SQLiteStorage {
	return &SQLiteStorage{
		db:    db,
		log:   logger.Component(log, "storage"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		owner TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (owner, name)
	);

	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_collections_workspace ON collections(workspace_id);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		collection_id TEXT NOT NULL,
		name TEXT NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		body TEXT DEFAULT '',
		headers TEXT DEFAULT '',
		parameters TEXT DEFAULT '',
		response TEXT DEFAULT '',
		updated_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_requests_collection ON requests(collection_id, created_at);

	-- Run history is append-only and outlives its request: no foreign key.
	CREATE TABLE IF NOT EXISTS request_runs (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		status INTEGER NOT NULL,
		status_text TEXT,
		headers TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_request_runs_request ON request_runs(request_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS aliases (
		name TEXT PRIMARY KEY,
		url TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

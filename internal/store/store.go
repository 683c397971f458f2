// Package store provides the local durable store for the EventCompass sync
// core: an embedded SQLite database holding the five entity collections and
// the operation log.
//
// The database runs in embedded mode with WAL for concurrency support, so a
// reconciliation pass can drain the operation log while mutation paths keep
// appending to it.
//
// Architecture:
//   - Collections: members, materials, schedules, tasks, todos, operations
//   - Indexes: operations(created_at, ref_id), tasks(schedule_id),
//     todos(assignee_id, status, due_date)
//   - Schema versioning: PRAGMA user_version, additive migrations only
//
// All mutations go through WithTx so that an optimistic record and its
// queued operation are committed or rolled back together.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eventcompass/eventcompass/internal/model"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schemaVersion is the current PRAGMA user_version.
const schemaVersion = 2

// Store wraps the SQLite connection with EventCompass-specific schema and
// queries.
type Store struct {
	conn *sql.DB
	path string

	// clockMu guards lastStamp, the high-water mark for operation
	// timestamps. Appends must be strictly increasing even across process
	// restarts, so the mark is seeded from the table on Open.
	clockMu   sync.Mutex
	lastStamp int64
}

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// query helpers below serve both the store and open transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created, and the schema is migrated to the
// current version. The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".eventcompass/local.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL keeps readers unblocked while the façade appends during a drain
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := s.seedClock(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// migrate brings the schema to schemaVersion. Migrations are additive:
// previously written records survive every upgrade.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateV1(ctx); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateV2(ctx); err != nil {
			return err
		}
	}

	if version != schemaVersion {
		query := fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// migrateV1 creates the initial collections. Schedules carried only an
// event_date at this version.
func (s *Store) migrateV1(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		part TEXT NOT NULL,
		position TEXT NOT NULL,
		contact_phone TEXT,
		contact_email TEXT,
		contact_note TEXT,
		sync_status TEXT NOT NULL DEFAULT 'synced'
	);

	CREATE TABLE IF NOT EXISTS materials (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		part TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'synced'
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		event_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		schedule_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		stage TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		location TEXT,
		status TEXT NOT NULL,
		note TEXT
	);

	CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		due_date TEXT,
		status TEXT NOT NULL,
		assignee_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		ref_id INTEGER NOT NULL,
		payload TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_created ON operations(created_at);
	CREATE INDEX IF NOT EXISTS idx_operations_ref ON operations(ref_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_schedule ON tasks(schedule_id);
	CREATE INDEX IF NOT EXISTS idx_todos_assignee ON todos(assignee_id);
	CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status);
	CREATE INDEX IF NOT EXISTS idx_todos_due ON todos(due_date);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create v1 schema: %w", err)
	}
	return nil
}

// migrateV2 adds start_time/end_time to schedules and derives values for
// existing rows from the legacy event_date so no record loses its place on
// the timeline.
func (s *Store) migrateV2(ctx context.Context) error {
	var hasStart int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('schedules') WHERE name = 'start_time'",
	).Scan(&hasStart)
	if err != nil {
		return fmt.Errorf("failed to inspect schedules schema: %w", err)
	}
	if hasStart > 0 {
		return nil
	}

	stmts := []string{
		"ALTER TABLE schedules ADD COLUMN start_time TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE schedules ADD COLUMN end_time TEXT NOT NULL DEFAULT ''",
		"UPDATE schedules SET start_time = event_date || 'T00:00:00' WHERE start_time = ''",
		"UPDATE schedules SET end_time = event_date || 'T23:59:59' WHERE end_time = ''",
	}
	for _, stmt := range stmts {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schedules to v2: %w", err)
		}
	}
	return nil
}

// seedClock initializes the operation timestamp high-water mark from the
// persisted log.
func (s *Store) seedClock(ctx context.Context) error {
	var last sql.NullInt64
	err := s.conn.QueryRowContext(ctx, "SELECT MAX(created_at) FROM operations").Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to seed operation clock: %w", err)
	}
	s.clockMu.Lock()
	s.lastStamp = last.Int64
	s.clockMu.Unlock()
	return nil
}

// nextStamp returns a strictly increasing nanosecond timestamp.
func (s *Store) nextStamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	now := time.Now().UnixNano()
	if now <= s.lastStamp {
		now = s.lastStamp + 1
	}
	s.lastStamp = now
	return now
}

// Tx is an open multi-collection transaction. Writes made through it are
// atomic and isolated from concurrent readers.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// WithTx runs fn inside a transaction. The transaction commits if fn
// returns nil and rolls back otherwise. Begin/commit failures and fn errors
// are wrapped as StorageError unless fn already returned a typed model
// error.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &model.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// ClearEntities deletes every row from the five entity collections. The
// operation log is left untouched; the pull phase must never drop queued
// mutations.
func (t *Tx) ClearEntities(ctx context.Context) error {
	for _, table := range []string{"members", "materials", "schedules", "tasks", "todos"} {
		if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &model.StorageError{Op: "clear " + table, Err: err}
		}
	}
	return nil
}

// ClearAll deletes every row from the entity collections and the operation
// log. Used by the destructive reset after the remote reset succeeded.
func (t *Tx) ClearAll(ctx context.Context) error {
	if err := t.ClearEntities(ctx); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM operations"); err != nil {
		return &model.StorageError{Op: "clear operations", Err: err}
	}
	return nil
}

// nullToPtr converts a nullable SQL string to a string pointer.
func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// ptrToNull converts a string pointer to a nullable SQL string.
func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// nullToIDPtr converts a nullable SQL integer to an id pointer.
func nullToIDPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// idPtrToNull converts an id pointer to a nullable SQL integer.
func idPtrToNull(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &model.StorageError{Op: op, Err: err}
}

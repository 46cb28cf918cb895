package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// Store is the SQLite-backed graph store. Single-writer by design: the
// graph builder is the only writer, readers go through WAL snapshots and
// are never blocked by a write in progress.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// graphSchema creates the knowledge-graph tables. The FTS5 shadow table is
// kept synchronized with nodes via write-path triggers, so every write
// yields a correct index with no separate reindex step.
const graphSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}',
	source_path TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	template_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);

CREATE TABLE IF NOT EXISTS relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relation TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	derived INTEGER NOT NULL DEFAULT 1,
	owner_id TEXT NOT NULL DEFAULT '',
	UNIQUE(source_id, target_id, relation)
);

CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_rel_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_rel_owner ON relationships(owner_id);

CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
	id UNINDEXED,
	title,
	body,
	content='nodes',
	content_rowid='rowid',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS nodes_fts_insert AFTER INSERT ON nodes BEGIN
	INSERT INTO nodes_fts(rowid, id, title, body)
	VALUES (new.rowid, new.id, new.title, new.body);
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_delete AFTER DELETE ON nodes BEGIN
	INSERT INTO nodes_fts(nodes_fts, rowid, id, title, body)
	VALUES ('delete', old.rowid, old.id, old.title, old.body);
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_update AFTER UPDATE ON nodes BEGIN
	INSERT INTO nodes_fts(nodes_fts, rowid, id, title, body)
	VALUES ('delete', old.rowid, old.id, old.title, old.body);
	INSERT INTO nodes_fts(rowid, id, title, body)
	VALUES (new.rowid, new.id, new.title, new.body);
END;
`

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Open opens or creates the store at path. An empty path opens an in-memory
// store for testing. On a persisted schema-version mismatch, the graph
// tables are dropped and recreated (self-healing; the vault is rescanned),
// while unrelated tables in the file keep their rows.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cerr.Wrap(cerr.ErrCodeStoreOpen, fmt.Errorf("create store directory: %w", err))
		}

		// Single-writer guard across processes.
		s.lock = flock.New(path + ".lock")
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, cerr.Wrap(cerr.ErrCodeStoreOpen, err)
		}
		if !locked {
			return nil, cerr.Newf(cerr.ErrCodeStoreLocked, "store %s is locked by another process", path)
		}

		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.unlock()
		return nil, cerr.Wrap(cerr.ErrCodeStoreOpen, err)
	}

	// Single writer; modernc.org/sqlite serializes through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params alone
	// are not sufficient.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			s.unlock()
			return nil, cerr.Wrap(cerr.ErrCodeStoreOpen, fmt.Errorf("set pragma: %w", err))
		}
	}

	s.db = db

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		s.unlock()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables and reconciles the persisted schema version.
func (s *Store) initSchema() error {
	if _, err := s.db.Exec(metadataSchema); err != nil {
		return cerr.Wrap(cerr.ErrCodeStoreOpen, fmt.Errorf("create metadata table: %w", err))
	}

	persisted, err := s.GetMeta(context.Background(), MetaKeySchemaVersion)
	if err != nil {
		return err
	}

	if persisted != "" && persisted != strconv.Itoa(CurrentSchemaVersion) {
		// Never a hard failure: the vault is the source of truth and the
		// graph is losslessly rebuildable, so favor correctness over
		// avoiding a rescan.
		slog.Warn("store_schema_mismatch",
			slog.String("persisted", persisted),
			slog.Int("expected", CurrentSchemaVersion),
			slog.String("action", "rebuilding graph tables"))
		if err := s.dropGraphTables(); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(graphSchema); err != nil {
		return cerr.Wrap(cerr.ErrCodeStoreOpen, fmt.Errorf("create graph tables: %w", err))
	}

	if persisted == "" || persisted != strconv.Itoa(CurrentSchemaVersion) {
		if err := s.SetMeta(context.Background(), MetaKeySchemaVersion, strconv.Itoa(CurrentSchemaVersion)); err != nil {
			return err
		}
	}

	return nil
}

// dropGraphTables removes only the knowledge-graph tables. Triggers drop
// with their table; anything else persisted in the file stays intact.
func (s *Store) dropGraphTables() error {
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS nodes_fts",
		"DROP TABLE IF EXISTS relationships",
		"DROP TABLE IF EXISTS nodes",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return cerr.Wrap(cerr.ErrCodeStoreOpen, fmt.Errorf("drop graph tables: %w", err))
		}
	}
	return nil
}

// GetMeta reads a persisted metadata value. Returns "" when the key is
// absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", cerr.StorageError("read metadata", err)
	}
	return value, nil
}

// SetMeta writes a persisted metadata value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata(key, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return cerr.StorageError("write metadata", err)
	}
	return nil
}

// DB exposes the underlying handle for callers that persist unrelated
// tables in the same file. Writes to the graph tables must go through the
// Store API.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the store. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	s.unlock()
	return err
}

func (s *Store) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

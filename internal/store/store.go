// Package store provides the local mail cache: a file-backed SQLite mirror
// of remote mailbox state written to by the sync layer and read by the
// query engine. It owns the schema, the transactional write pipeline, the
// derived thread/folder aggregates, and the full-text index.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql schema_fts.sql
var schemaFS embed.FS

// Error categories. Callers discriminate with errors.Is; the sync
// orchestrator owns any retry policy.
var (
	// ErrInitialization means the store could not be opened or the schema
	// could not be applied. Fatal: callers must not assume caching works.
	ErrInitialization = errors.New("store initialization failed")

	// ErrWrite means a write operation failed and was rolled back as a
	// whole. No partial state is left visible.
	ErrWrite = errors.New("store write failed")

	// ErrQuery means a malformed or contradictory filter combination.
	ErrQuery = errors.New("invalid query")
)

// Store is the caller-owned handle to the mail cache. One Store per user
// profile database; a single process is the only writer.
type Store struct {
	db            *sql.DB
	dbPath        string
	fts5Available bool
	logger        *slog.Logger
}

// WAL journaling keeps readers unblocked by in-flight writes; the busy
// timeout serializes the occasional writer collision instead of erroring.
const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// isSQLiteError checks if err is a sqlite3.Error whose message contains
// substr. Type-asserts with errors.As rather than string-matching the whole
// chain; handles both value and pointer forms.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}

// Open opens or creates the cache database at the given path, creating
// parent directories as needed.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", ErrInitialization, err)
	}

	dsn := dbPath + defaultSQLiteParams
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrInitialization, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrInitialization, err)
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
		logger: slog.Default(),
	}
	s.configurePragmas()
	// An already-initialized database keeps its full-text index working
	// without another InitSchema call.
	s.fts5Available = s.hasFTSIndex()
	return s, nil
}

// hasFTSIndex reports whether the messages_fts table exists in the schema.
func (s *Store) hasFTSIndex() bool {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'messages_fts'").Scan(&n)
	return err == nil && n > 0
}

// configurePragmas tunes the connection for a desktop-scale cache: bounded
// page cache and memory-mapped reads. Failures here cost performance, not
// correctness, so they are logged and swallowed.
func (s *Store) configurePragmas() {
	pragmas := []string{
		"PRAGMA cache_size = -8000",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			s.logger.Warn("pragma failed", "pragma", p, "error", err)
		}
	}
}

// WithLogger sets the logger used for maintenance warnings.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// FTSAvailable reports whether the FTS5 index exists. False means the
// SQLite build lacks the fts5 module and search falls back to LIKE.
func (s *Store) FTSAvailable() bool {
	return s.fts5Available
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrWrite, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", ErrWrite, err)
	}
	return nil
}

// InitSchema initializes the database schema. Safe to re-run: all
// statements are IF NOT EXISTS.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("%w: read schema.sql: %w", ErrInitialization, err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("%w: execute schema.sql: %w", ErrInitialization, err)
	}

	// The FTS5 index is optional; a build without the module degrades to
	// LIKE search instead of failing initialization.
	ftsSchema, err := schemaFS.ReadFile("schema_fts.sql")
	if err != nil {
		return fmt.Errorf("%w: read schema_fts.sql: %w", ErrInitialization, err)
	}
	if _, err := s.db.Exec(string(ftsSchema)); err != nil {
		if isSQLiteError(err, "no such module: fts5") {
			s.fts5Available = false
			s.logger.Warn("fts5 unavailable, full-text search degrades to LIKE", "error", err)
		} else {
			return fmt.Errorf("%w: init fts schema: %w", ErrInitialization, err)
		}
	} else {
		s.fts5Available = true
	}

	return nil
}

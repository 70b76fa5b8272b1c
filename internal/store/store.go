// Package store implements the engine's persistence layer on SQLite:
// task, proposal, and decision repositories plus the context artifact store
// (file states, chunks, embeddings, links, symbols, usage metrics) with
// named sequence allocators and transactional replace-with-rollback.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/maestro-ai/maestro/internal/logging"
)

// Store owns the database handle. Writes for a single file happen inside
// one transaction; reads use short-lived pooled connections.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *logging.Logger
}

// Open creates (or opens) the database at path and runs migrations.
// ":memory:" opens an in-memory database for tests.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		// A shared cache keeps every pooled connection on the same
		// in-memory database.
		dsn = "file::memory:?mode=memory&cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dbPath: path, logger: logger.WithComponent("store")}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithConnection runs fn on a dedicated pooled connection, releasing it on
// every exit path.
func (s *Store) WithConnection(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return fn(conn)
}

// InTransaction runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (s *Store) InTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Sequence names used by the context store.
const (
	SeqFileState  = "file_state_seq"
	SeqChunks     = "chunks_seq"
	SeqEmbeddings = "embeddings_seq"
	SeqLinks      = "links_seq"
)

// NextIDs allocates n consecutive ids from the named sequence inside tx.
// The first allocated id is returned.
func NextIDs(tx *sql.Tx, name string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("sequence %s: invalid allocation %d", name, n)
	}
	_, err := tx.Exec(`
		INSERT INTO sequences (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + ?
	`, name, n, n)
	if err != nil {
		return 0, fmt.Errorf("advancing sequence %s: %w", name, err)
	}
	var last int64
	if err := tx.QueryRow(`SELECT value FROM sequences WHERE name = ?`, name).Scan(&last); err != nil {
		return 0, fmt.Errorf("reading sequence %s: %w", name, err)
	}
	return last - n + 1, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sequences (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL,
	status       TEXT NOT NULL,
	strategy     TEXT NOT NULL DEFAULT '',
	assignees    TEXT NOT NULL DEFAULT '[]',
	dependencies TEXT NOT NULL DEFAULT '[]',
	complexity   INTEGER NOT NULL,
	risk         INTEGER NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

CREATE TABLE IF NOT EXISTS proposals (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	input_type TEXT NOT NULL,
	content    TEXT NOT NULL,
	confidence REAL NOT NULL,
	tokens_in  INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(task_id, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_proposals_task ON proposals(task_id);

CREATE TABLE IF NOT EXISTS decisions (
	id                 TEXT PRIMARY KEY,
	task_id            TEXT NOT NULL UNIQUE,
	considered         TEXT NOT NULL DEFAULT '[]',
	selected           TEXT NOT NULL DEFAULT '[]',
	winner_id          TEXT NOT NULL DEFAULT '',
	agreement_rate     REAL NOT NULL,
	rationale          TEXT NOT NULL DEFAULT '',
	consensus_achieved INTEGER NOT NULL,
	decided_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS file_state (
	file_id       INTEGER PRIMARY KEY,
	relative_path TEXT NOT NULL UNIQUE,
	content_hash  TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	mtime_ns      INTEGER NOT NULL,
	language      TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL DEFAULT '',
	indexed_at    TIMESTAMP NOT NULL,
	is_deleted    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id       INTEGER PRIMARY KEY,
	file_id        INTEGER NOT NULL,
	ordinal        INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	start_line     INTEGER NOT NULL DEFAULT 0,
	end_line       INTEGER NOT NULL DEFAULT 0,
	token_estimate INTEGER NOT NULL DEFAULT 0,
	content        TEXT NOT NULL,
	summary        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	UNIQUE(file_id, ordinal)
);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);

CREATE TABLE IF NOT EXISTS embeddings (
	embedding_id INTEGER PRIMARY KEY,
	chunk_id     INTEGER NOT NULL,
	model        TEXT NOT NULL,
	dimensions   INTEGER NOT NULL,
	vector       TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

CREATE TABLE IF NOT EXISTS links (
	link_id         INTEGER PRIMARY KEY,
	source_chunk_id INTEGER NOT NULL,
	target_file_id  INTEGER NOT NULL,
	target_chunk_id INTEGER NOT NULL DEFAULT 0,
	type            TEXT NOT NULL,
	label           TEXT NOT NULL DEFAULT '',
	score           REAL NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_chunk_id);
CREATE INDEX IF NOT EXISTS idx_links_target_file ON links(target_file_id);

CREATE TABLE IF NOT EXISTS symbols (
	symbol_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id        INTEGER NOT NULL,
	chunk_id       INTEGER NOT NULL,
	type           TEXT NOT NULL,
	name           TEXT NOT NULL,
	qualified_name TEXT NOT NULL DEFAULT '',
	signature      TEXT NOT NULL DEFAULT '',
	start_line     INTEGER NOT NULL DEFAULT 0,
	end_line       INTEGER NOT NULL DEFAULT 0,
	language       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);

CREATE TABLE IF NOT EXISTS usage_metrics (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id   INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_chunk ON usage_metrics(chunk_id);
`

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// DefaultSQLitePath is the database used by the sqlite backend when no
// path is configured.
const DefaultSQLitePath = "sent_history.db"

// SQLiteStore keeps the history in a SQLite table, one row per key.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
	keySet
}

// NewSQLiteStore opens or creates the database at path and its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sent (
			key TEXT PRIMARY KEY,
			sent_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sent_at ON sent(sent_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Load reads every key from the sent table.
func (s *SQLiteStore) Load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM sent`)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return fmt.Errorf("scanning history row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating history rows: %w", err)
	}
	s.reset(keys, false)
	return nil
}

// Contains reports whether p has been sent before.
func (s *SQLiteStore) Contains(p types.CandidatePaper) bool { return s.contains(p) }

// Record buffers p for Persist.
func (s *SQLiteStore) Record(p types.CandidatePaper) { s.record(p) }

// Len returns the number of known keys.
func (s *SQLiteStore) Len() int { return s.len() }

// Keys returns every known key, sorted.
func (s *SQLiteStore) Keys() []string { return s.keys() }

// Persist inserts the recorded keys in one transaction. Keys already in
// the table are left untouched.
func (s *SQLiteStore) Persist(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO sent (key, sent_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	sentAt := s.now().UTC().Format(time.RFC3339)
	for _, k := range s.pending {
		if _, err := stmt.ExecContext(ctx, k, sentAt); err != nil {
			return fmt.Errorf("inserting history key %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	s.pending = nil
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

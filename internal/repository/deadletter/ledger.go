// Package deadletter persists failed ingestion chunks so they can be replayed later.
package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS failed_chunks (
	chunk_offset INTEGER NOT NULL,
	chunk_limit  INTEGER NOT NULL,
	reason       TEXT    NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 1,
	failed_at    INTEGER NOT NULL,
	PRIMARY KEY (chunk_offset, chunk_limit)
)`

// Entry is one dead-lettered chunk.
type Entry struct {
	Offset   int
	Limit    int
	Reason   string
	Attempts int
	FailedAt time.Time
}

// Ledger is a SQLite-backed dead-letter store.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path. ":memory:" gives a throwaway ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Single connection: avoids "database is locked" and keeps :memory: on one handle.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing ledger: %w", err)
		}
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a failed chunk. Recording the same window again bumps its attempt count.
func (l *Ledger) Record(ctx context.Context, offset, limit int, reason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO failed_chunks (chunk_offset, chunk_limit, reason, attempts, failed_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (chunk_offset, chunk_limit) DO UPDATE SET
			reason = excluded.reason,
			attempts = failed_chunks.attempts + 1,
			failed_at = excluded.failed_at`,
		offset, limit, reason, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("recording chunk %d+%d: %w", offset, limit, err)
	}
	return nil
}

// List returns all entries ordered by offset.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT chunk_offset, chunk_limit, reason, attempts, failed_at
		FROM failed_chunks ORDER BY chunk_offset, chunk_limit`)
	if err != nil {
		return nil, fmt.Errorf("listing failed chunks: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var failedAt int64
		if err := rows.Scan(&e.Offset, &e.Limit, &e.Reason, &e.Attempts, &failedAt); err != nil {
			return nil, fmt.Errorf("scanning failed chunk: %w", err)
		}
		e.FailedAt = time.UnixMilli(failedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failed chunks: %w", err)
	}
	return out, nil
}

// Remove deletes an entry after a successful replay. Removing an unknown entry is a no-op.
func (l *Ledger) Remove(ctx context.Context, offset, limit int) error {
	if _, err := l.db.ExecContext(ctx,
		"DELETE FROM failed_chunks WHERE chunk_offset = ? AND chunk_limit = ?", offset, limit); err != nil {
		return fmt.Errorf("removing chunk %d+%d: %w", offset, limit, err)
	}
	return nil
}

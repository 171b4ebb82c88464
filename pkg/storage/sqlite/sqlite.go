// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/turnpike-ai/turnpike/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	finish_reason TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	transcript TEXT NOT NULL DEFAULT '[]',
	artifacts TEXT NOT NULL DEFAULT '[]',
	truncated INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns (session_id, created_at);
`

// Driver implements storage.Driver using SQLite via github.com/mattn/go-sqlite3.
type Driver struct {
	db *sql.DB
}

// NewDriver opens a SQLite-backed store. The dbPath can be a file path or
// ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put stores a record, replacing any existing record with the same id.
func (s *Driver) Put(ctx context.Context, record *storage.TurnRecord) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}

	transcript, err := json.Marshal(record.Transcript)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	artifacts, err := json.Marshal(record.Artifacts)
	if err != nil {
		return fmt.Errorf("encoding artifacts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO turns
			(id, session_id, model, finish_reason, prompt_tokens, completion_tokens, transcript, artifacts, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Model, record.FinishReason,
		record.Usage.PromptTokens, record.Usage.CompletionTokens,
		string(transcript), string(artifacts), record.Truncated, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting turn %s: %w", record.ID, err)
	}
	return nil
}

// Get retrieves a record by its turn id.
func (s *Driver) Get(ctx context.Context, id string) (*storage.TurnRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, model, finish_reason, prompt_tokens, completion_tokens, transcript, artifacts, truncated, created_at
		FROM turns WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	return record, err
}

// BySession returns all records for a session, oldest first.
func (s *Driver) BySession(ctx context.Context, sessionID string) ([]*storage.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, model, finish_reason, prompt_tokens, completion_tokens, transcript, artifacts, truncated, created_at
		FROM turns WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []*storage.TurnRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Driver) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.TurnRecord, error) {
	var record storage.TurnRecord
	var transcript, artifacts string

	err := row.Scan(
		&record.ID, &record.SessionID, &record.Model, &record.FinishReason,
		&record.Usage.PromptTokens, &record.Usage.CompletionTokens,
		&transcript, &artifacts, &record.Truncated, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(transcript), &record.Transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript for turn %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(artifacts), &record.Artifacts); err != nil {
		return nil, fmt.Errorf("decoding artifacts for turn %s: %w", record.ID, err)
	}
	return &record, nil
}

var _ storage.Driver = (*Driver)(nil)

// Package postgres provides a PostgreSQL-backed storage driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/turnpike-ai/turnpike/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	finish_reason TEXT NOT NULL DEFAULT '',
	prompt_tokens BIGINT NOT NULL DEFAULT 0,
	completion_tokens BIGINT NOT NULL DEFAULT 0,
	transcript JSONB NOT NULL DEFAULT '[]',
	artifacts JSONB NOT NULL DEFAULT '[]',
	truncated BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns (session_id, created_at);
`

// Driver implements storage.Driver using PostgreSQL via pgx.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new PostgreSQL-backed store.
// The connStr is a PostgreSQL connection string, e.g.
// "host=localhost port=5432 user=turnpike dbname=turnpike sslmode=disable"
// or a connection URI like "postgres://turnpike@localhost:5432/turnpike".
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection is reachable
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
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
		INSERT INTO turns
			(id, session_id, model, finish_reason, prompt_tokens, completion_tokens, transcript, artifacts, truncated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			model = EXCLUDED.model,
			finish_reason = EXCLUDED.finish_reason,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			transcript = EXCLUDED.transcript,
			artifacts = EXCLUDED.artifacts,
			truncated = EXCLUDED.truncated,
			created_at = EXCLUDED.created_at`,
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
		FROM turns WHERE id = $1`, id)

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
		FROM turns WHERE session_id = $1 ORDER BY created_at`, sessionID)
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
	var transcript, artifacts []byte

	err := row.Scan(
		&record.ID, &record.SessionID, &record.Model, &record.FinishReason,
		&record.Usage.PromptTokens, &record.Usage.CompletionTokens,
		&transcript, &artifacts, &record.Truncated, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(transcript, &record.Transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript for turn %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(artifacts, &record.Artifacts); err != nil {
		return nil, fmt.Errorf("decoding artifacts for turn %s: %w", record.ID, err)
	}
	return &record, nil
}

var _ storage.Driver = (*Driver)(nil)

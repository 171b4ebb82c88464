// Package storage
package storage

import (
	"context"
	"time"

	"github.com/turnpike-ai/turnpike/pkg/artifact"
	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// TurnRecord is the archived form of one completed turn: the full
// transcript, the classified artifacts, and the stream's final accounting.
type TurnRecord struct {
	ID           string              `json:"id"`
	SessionID    string              `json:"session_id"`
	Model        string              `json:"model"`
	FinishReason string              `json:"finish_reason"`
	Usage        llm.Usage           `json:"usage"`
	Transcript   []llm.Message       `json:"transcript"`
	Artifacts    []artifact.Artifact `json:"artifacts"`

	// Truncated marks a turn whose client connection dropped mid-stream;
	// the transcript holds only what was delivered before the failure.
	Truncated bool      `json:"truncated"`
	CreatedAt time.Time `json:"created_at"`
}

// Driver defines the interface for persisting and retrieving turn records
// in a storage backend.
type Driver interface {
	// Put stores a record, replacing any existing record with the same id.
	Put(ctx context.Context, record *TurnRecord) error

	// Get retrieves a record by its turn id.
	Get(ctx context.Context, id string) (*TurnRecord, error)

	// BySession returns all records for a session, oldest first.
	BySession(ctx context.Context, sessionID string) ([]*TurnRecord, error)

	// Close closes the store and releases any resources.
	Close() error
}

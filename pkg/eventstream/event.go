// Package eventstream defines the transport-neutral events emitted after a
// turn completes, and the publisher contract backends implement.
package eventstream

import (
	"time"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a turn finishes streaming and
	// its record has been archived.
	EventTypeTurnCompleted = "turnpike.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a completed turn.
type TurnCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Turn          TurnMeta    `json:"turn"`
}

// EventSource identifies the process and provider that produced the turn.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// TurnMeta captures the completed turn's identity and accounting.
type TurnMeta struct {
	TurnID        string    `json:"turn_id"`
	SessionID     string    `json:"session_id"`
	FinishReason  string    `json:"finish_reason"`
	Usage         llm.Usage `json:"usage"`
	ArtifactCount int       `json:"artifact_count"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
}

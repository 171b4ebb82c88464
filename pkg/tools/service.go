package tools

import (
	"context"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// Service is a source of callable tools. The builtin service and every
// configured MCP server implement it.
type Service interface {
	// Name identifies the service in logs and config.
	Name() string

	// Tools lists the tool definitions the service currently offers.
	Tools(ctx context.Context) ([]llm.ToolDef, error)

	// Call invokes one tool by name. Tool-level failures are reported
	// through the result's IsError flag; a non-nil error means the
	// service itself could not complete the call.
	Call(ctx context.Context, name string, args map[string]any) (llm.ToolResult, error)

	// Close releases any connections the service holds.
	Close() error
}

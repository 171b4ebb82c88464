package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// BuiltinServiceName is the registry name of the in-process service.
const BuiltinServiceName = "builtin"

// builtinService offers a small set of in-process tools that need no
// external server. It is registered when tools.builtin is enabled.
type builtinService struct{}

// NewBuiltinService creates the in-process tool service.
func NewBuiltinService() Service {
	return &builtinService{}
}

func (s *builtinService) Name() string {
	return BuiltinServiceName
}

func (s *builtinService) Tools(_ context.Context) ([]llm.ToolDef, error) {
	return []llm.ToolDef{
		{
			Name:        "time.now",
			Description: "Returns the current time in RFC 3339 format. Accepts an optional IANA timezone name.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{
						"type":        "string",
						"description": "IANA timezone name, e.g. America/New_York. Defaults to UTC.",
					},
				},
			},
		},
		{
			Name:        "echo",
			Description: "Returns its text argument unchanged. Useful for connectivity checks.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type": "string",
					},
				},
				"required": []any{"text"},
			},
		},
	}, nil
}

func (s *builtinService) Call(_ context.Context, name string, args map[string]any) (llm.ToolResult, error) {
	switch name {
	case "time.now":
		loc := time.UTC
		if tz, ok := args["timezone"].(string); ok && tz != "" {
			parsed, err := time.LoadLocation(tz)
			if err != nil {
				return llm.ErrorResult(fmt.Sprintf("unknown timezone %q", tz)), nil
			}
			loc = parsed
		}
		return textResult(time.Now().In(loc).Format(time.RFC3339)), nil

	case "echo":
		text, ok := args["text"].(string)
		if !ok {
			return llm.ErrorResult("echo requires a string \"text\" argument"), nil
		}
		return textResult(text), nil

	default:
		return llm.ToolResult{}, fmt.Errorf("builtin service has no tool %q", name)
	}
}

func (s *builtinService) Close() error {
	return nil
}

func textResult(text string) llm.ToolResult {
	return llm.ToolResult{
		Content: []llm.ContentBlock{{Type: "text", Text: text}},
	}
}

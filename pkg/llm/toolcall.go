package llm

import "strings"

// ToolCallFragment is a partial tool-call record emitted incrementally by a
// provider. Fragments sharing an ID must be merged before the call is usable;
// ArgumentsDelta carries a partial slice of the arguments JSON text.
type ToolCallFragment struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
}

// ToolCall is a complete, validated tool invocation: all three fields are
// present and Arguments parsed as a JSON object.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing one tool call. Failures are encoded
// as IsError=true with an explanatory text block, never as a Go error.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"is_error"`
}

// ErrorResult builds a ToolResult describing a failed call.
func ErrorResult(text string) ToolResult {
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

// Text returns the concatenated text content of the result's blocks.
func (r ToolResult) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

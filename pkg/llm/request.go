package llm

// ChatRequest represents a provider-agnostic chat completion request.
// This is the internal representation handed to a provider client, which
// converts it to its specific wire format.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "llama3.2")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Tools the model may invoke during this request
	Tools []ToolDef `json:"tools,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ToolDef describes a tool offered to the model.
// InputSchema is a JSON Schema object describing the tool's arguments.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

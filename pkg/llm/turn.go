package llm

// Turn is one request/response cycle of the chat pipeline. It holds the
// ordered prior messages and the tools enabled for the cycle. A Turn is
// created per incoming request and owned exclusively by its pipeline until
// the response completes or errors.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Tools     []ToolDef `json:"tools,omitempty"`
}

package llm

// Finish reasons reported by a provider on the final delta of a round.
const (
	FinishStop          = "stop"
	FinishToolCalls     = "tool_calls"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// Delta is a single incremental unit of provider output after parsing the
// provider-specific streaming format. Any combination of fields may be set:
// a delta can carry text, tool-call fragments, a finish reason, usage, or
// nothing at all (keep-alive).
type Delta struct {
	// ContentText is the text fragment carried by this delta, if any.
	ContentText string `json:"content_text,omitempty"`

	// ToolCalls holds partial tool-call records carried by this delta.
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`

	// FinishReason is non-empty on the delta that ends a round.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage metrics (typically only present near the end of the stream).
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts for one provider round-trip.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Add accumulates counts from another usage record.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

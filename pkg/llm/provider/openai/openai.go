// Package openai implements the provider contract against an
// OpenAI-compatible Chat Completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/turnpike-ai/turnpike/pkg/llm"
	"github.com/turnpike-ai/turnpike/pkg/sse"
)

// Config carries the client settings for an OpenAI-compatible endpoint.
type Config struct {
	// BaseURL is the endpoint root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// HTTPClient performs the round-trips.
	HTTPClient *http.Client
}

type client struct {
	config Config
}

// New creates an OpenAI-compatible provider client.
func New(config Config) *client {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &client{config: config}
}

func (c *client) Name() string {
	return "openai"
}

// Stream opens a streaming chat completion. The response body is an SSE
// stream of JSON chunks terminated by a "[DONE]" sentinel.
func (c *client) Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	httpResp, err := c.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8*1024))
		httpResp.Body.Close()
		return nil, fmt.Errorf("upstream returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return &stream{
		body:    httpResp.Body,
		reader:  sse.NewReader(httpResp.Body),
		callIDs: make(map[int]string),
	}, nil
}

// buildRequest converts the internal request to the Chat Completions format.
func buildRequest(req *llm.ChatRequest) openaiRequest {
	out := openaiRequest{
		Model:         req.Model,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
	}

	if req.System != "" {
		out.Messages = append(out.Messages, openaiMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, convertMessage(msg)...)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	return out
}

// convertMessage maps one internal message onto OpenAI wire messages.
// Tool results become one "tool" role message per result block.
func convertMessage(msg llm.Message) []openaiMessage {
	converted := openaiMessage{Role: msg.Role}
	var results []openaiMessage

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			converted.Content += block.Text
		case "tool_use":
			args, err := json.Marshal(block.ToolInput)
			if err != nil {
				args = []byte("{}")
			}
			tc := openaiToolCall{ID: block.ToolUseID, Type: "function"}
			tc.Function.Name = block.ToolName
			tc.Function.Arguments = string(args)
			converted.ToolCalls = append(converted.ToolCalls, tc)
		case "tool_result":
			results = append(results, openaiMessage{
				Role:       "tool",
				ToolCallID: block.ToolResultID,
				Content:    block.ToolOutput,
			})
		}
	}

	out := []openaiMessage{}
	if converted.Content != "" || len(converted.ToolCalls) > 0 {
		out = append(out, converted)
	}
	return append(out, results...)
}

// stream reads SSE chunks and converts them to deltas.
type stream struct {
	body   io.ReadCloser
	reader *sse.Reader

	// callIDs maps a tool-call index to the call id announced on its first
	// fragment, so every fragment handed downstream carries the merge key.
	callIDs map[int]string

	closed bool
}

func (s *stream) Next() (*llm.Delta, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, nil
		}

		// The terminating sentinel carries no JSON payload.
		if ev.Data == "[DONE]" {
			return nil, nil
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return nil, fmt.Errorf("parsing stream chunk: %w", err)
		}

		delta := s.convertChunk(&chunk)
		if delta == nil {
			// Keep-alive or otherwise empty chunk; read the next event.
			continue
		}
		return delta, nil
	}
}

func (s *stream) convertChunk(chunk *openaiStreamChunk) *llm.Delta {
	delta := &llm.Delta{}
	empty := true

	if chunk.Usage != nil {
		delta.Usage = &llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
		}
		empty = false
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			delta.ContentText = choice.Delta.Content
			empty = false
		}
		for _, tc := range choice.Delta.ToolCalls {
			id := tc.ID
			if id != "" {
				s.callIDs[tc.Index] = id
			} else {
				id = s.callIDs[tc.Index]
			}
			delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallFragment{
				ID:             id,
				Name:           tc.Function.Name,
				ArgumentsDelta: tc.Function.Arguments,
			})
			empty = false
		}
		if choice.FinishReason != "" {
			delta.FinishReason = normalizeFinishReason(choice.FinishReason)
			empty = false
		}
	}

	if empty {
		return nil
	}
	return delta
}

// normalizeFinishReason maps OpenAI finish reasons onto the internal set.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop", "tool_calls", "length", "content_filter":
		return reason
	case "function_call":
		return llm.FinishToolCalls
	default:
		return llm.FinishStop
	}
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

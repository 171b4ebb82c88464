// Package ollama implements the provider contract against a local Ollama
// server. Ollama streams newline-delimited JSON rather than SSE.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// Config carries the client settings for an Ollama endpoint.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:11434".
	BaseURL string

	// HTTPClient performs the round-trips.
	HTTPClient *http.Client
}

type client struct {
	config Config
}

// New creates an Ollama provider client.
func New(config Config) *client {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &client{config: config}
}

func (c *client) Name() string {
	return "ollama"
}

// Stream opens a streaming chat round-trip against /api/chat.
func (c *client) Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8*1024))
		httpResp.Body.Close()
		return nil, fmt.Errorf("upstream returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &stream{body: httpResp.Body, scanner: scanner}, nil
}

func buildRequest(req *llm.ChatRequest) ollamaRequest {
	out := ollamaRequest{
		Model:  req.Model,
		Stream: true,
	}

	if req.System != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, convertMessage(msg)...)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	if req.Temperature != nil {
		out.Options = map[string]any{"temperature": *req.Temperature}
	}

	return out
}

func convertMessage(msg llm.Message) []ollamaMessage {
	converted := ollamaMessage{Role: msg.Role}
	var results []ollamaMessage

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			converted.Content += block.Text
		case "tool_use":
			args, err := json.Marshal(block.ToolInput)
			if err != nil {
				args = []byte("{}")
			}
			tc := ollamaToolCall{}
			tc.Function.Name = block.ToolName
			tc.Function.Arguments = args
			converted.ToolCalls = append(converted.ToolCalls, tc)
		case "tool_result":
			results = append(results, ollamaMessage{Role: "tool", Content: block.ToolOutput})
		}
	}

	out := []ollamaMessage{}
	if converted.Content != "" || len(converted.ToolCalls) > 0 {
		out = append(out, converted)
	}
	return append(out, results...)
}

// stream reads NDJSON lines and converts them to deltas.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	nextID  int
	closed  bool

	// sawToolCalls records whether any chunk of the round carried tool
	// calls. Ollama streams the calls in a done:false chunk and then ends
	// the round with an empty done:true chunk reporting "stop", so the
	// finish reason cannot be derived from the final chunk alone.
	sawToolCalls bool
}

func (s *stream) Next() (*llm.Delta, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk ollamaStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("parsing stream chunk: %w", err)
		}

		delta := &llm.Delta{ContentText: chunk.Message.Content}

		// Ollama delivers each call complete in one chunk, so a synthetic id
		// is enough to key the fragment downstream.
		for _, tc := range chunk.Message.ToolCalls {
			args := tc.Function.Arguments
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			delta.ToolCalls = append(delta.ToolCalls, llm.ToolCallFragment{
				ID:             fmt.Sprintf("call_%d", s.nextID),
				Name:           tc.Function.Name,
				ArgumentsDelta: string(args),
			})
			s.nextID++
			s.sawToolCalls = true
		}

		if chunk.Done {
			delta.FinishReason = s.finishReason(&chunk)
			delta.Usage = &llm.Usage{
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
			}
		}

		return delta, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// finishReason maps Ollama done reasons onto the internal set. A round that
// carried tool calls in any of its chunks ends as tool_calls even when
// Ollama reports "stop" on the final chunk.
func (s *stream) finishReason(chunk *ollamaStreamChunk) string {
	if s.sawToolCalls {
		return llm.FinishToolCalls
	}
	switch chunk.DoneReason {
	case "length":
		return llm.FinishLength
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

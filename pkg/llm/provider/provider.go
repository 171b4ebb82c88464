// Package provider defines the language-model provider contract and the
// factory for the supported provider clients.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// Provider is a client for one language-model API. Implementations convert
// the internal ChatRequest into their wire format and parse the streamed
// response back into deltas.
type Provider interface {
	// Name returns the canonical provider name (e.g., "openai", "ollama").
	Name() string

	// Stream opens a streaming completion round-trip. The returned stream is
	// the single source of truth for when the round ends (FinishReason on
	// its final delta).
	Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error)
}

// Config carries the settings shared by all provider clients.
type Config struct {
	// BaseURL is the provider endpoint root, e.g. "https://api.openai.com/v1"
	// or "http://localhost:11434".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds the whole round-trip including streaming.
	// Zero means the default of 5 minutes.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client, mainly for tests.
	HTTPClient *http.Client
}

// LLM requests can be slow, especially with long completions.
const defaultTimeout = 5 * time.Minute

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

package api

import "time"

// Config holds the settings for the chat API server.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// ProviderName identifies the configured language-model provider,
	// used for logging and turn events.
	ProviderName string

	// Model is the default model for chat turns when a request does not
	// name one.
	Model string

	// MaxToolRounds bounds the tool-execution rounds per turn.
	MaxToolRounds int

	// ToolTimeout bounds a single tool call.
	ToolTimeout time.Duration
}

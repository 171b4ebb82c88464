package provider

import (
	"fmt"

	"github.com/turnpike-ai/turnpike/pkg/llm/provider/ollama"
	"github.com/turnpike-ai/turnpike/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	OpenAI = "openai"
	Ollama = "ollama"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{OpenAI, Ollama}
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string, config Config) (Provider, error) {
	switch providerType {
	case OpenAI:
		return openai.New(openai.Config{
			BaseURL:    config.BaseURL,
			APIKey:     config.APIKey,
			HTTPClient: config.httpClient(),
		}), nil
	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL:    config.BaseURL,
			HTTPClient: config.httpClient(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}

package config

const (
	defaultListen   = ":8080"
	defaultProvider = "ollama"
	defaultUpstream = "http://localhost:11434"
	defaultModel    = "llama3.2"

	defaultMaxToolRounds   = 1
	defaultToolTimeoutSecs = 30

	defaultStorageDriver = "memory"

	defaultEventTopic = "turnpike.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Provider: ProviderConfig{
			Name:     defaultProvider,
			Upstream: defaultUpstream,
			Model:    defaultModel,
		},
		Chat: ChatConfig{
			MaxToolRounds:   defaultMaxToolRounds,
			ToolTimeoutSecs: defaultToolTimeoutSecs,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Tools: ToolsConfig{
			Watch: true,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}

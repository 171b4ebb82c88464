package tools

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config describes the tool services a registry should build. It is usually
// loaded from the tools TOML file referenced by the server config.
type Config struct {
	Builtin BuiltinConfig `toml:"builtin"`
	MCP     []MCPConfig   `toml:"mcp"`
}

// BuiltinConfig toggles the in-process tool service.
type BuiltinConfig struct {
	Enabled bool `toml:"enabled"`
}

// MCPConfig describes one remote MCP server.
type MCPConfig struct {
	Name     string `toml:"name"`
	Endpoint string `toml:"endpoint"`
}

// DefaultConfig enables the builtin service and no remote servers.
func DefaultConfig() Config {
	return Config{
		Builtin: BuiltinConfig{Enabled: true},
	}
}

// LoadConfig reads a tools config file. A missing file yields the default
// config so a fresh install works without one.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("reading tools config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing tools config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every MCP entry is complete and uniquely named.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.MCP))
	for i, server := range c.MCP {
		if server.Name == "" {
			return fmt.Errorf("mcp server %d: name is required", i)
		}
		if server.Endpoint == "" {
			return fmt.Errorf("mcp server %q: endpoint is required", server.Name)
		}
		if server.Name == BuiltinServiceName {
			return fmt.Errorf("mcp server name %q is reserved", server.Name)
		}
		if _, dup := seen[server.Name]; dup {
			return fmt.Errorf("duplicate mcp server name %q", server.Name)
		}
		seen[server.Name] = struct{}{}
	}
	return nil
}

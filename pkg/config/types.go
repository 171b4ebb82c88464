package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent turnpike configuration stored as
// config.toml in the .turnpike/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Server      ServerConfig      `toml:"server"`
	Provider    ProviderConfig    `toml:"provider"`
	Chat        ChatConfig        `toml:"chat"`
	Storage     StorageConfig     `toml:"storage"`
	Tools       ToolsConfig       `toml:"tools"`
	EventStream EventStreamConfig `toml:"event_stream"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
	Debug  bool   `toml:"debug,omitempty"`
}

// ProviderConfig holds language-model provider settings. The API key is
// intentionally absent from the TOML schema; it is read only from the
// environment so it never lands in a config file.
type ProviderConfig struct {
	Name     string `toml:"name,omitempty"`
	Upstream string `toml:"upstream,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// ChatConfig holds per-turn streaming settings.
type ChatConfig struct {
	MaxToolRounds   uint `toml:"max_tool_rounds,omitempty"`
	ToolTimeoutSecs uint `toml:"tool_timeout_secs,omitempty"`
}

// StorageConfig holds turn archive settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ToolsConfig points at the tools.toml file and controls hot reloading.
type ToolsConfig struct {
	ConfigPath string `toml:"config_path,omitempty"`
	Watch      bool   `toml:"watch,omitempty"`
}

// EventStreamConfig holds Kafka publisher settings.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Server.Debug) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for server.debug: %w", err)
			}
			c.Server.Debug = b
			return nil
		},
	},
	"provider.name": {
		get: func(c *Config) string { return c.Provider.Name },
		set: func(c *Config, v string) error { c.Provider.Name = v; return nil },
	},
	"provider.upstream": {
		get: func(c *Config) string { return c.Provider.Upstream },
		set: func(c *Config, v string) error { c.Provider.Upstream = v; return nil },
	},
	"provider.model": {
		get: func(c *Config) string { return c.Provider.Model },
		set: func(c *Config, v string) error { c.Provider.Model = v; return nil },
	},
	"chat.max_tool_rounds": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Chat.MaxToolRounds), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.max_tool_rounds: %w", err)
			}
			c.Chat.MaxToolRounds = uint(n)
			return nil
		},
	},
	"chat.tool_timeout_secs": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Chat.ToolTimeoutSecs), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.tool_timeout_secs: %w", err)
			}
			c.Chat.ToolTimeoutSecs = uint(n)
			return nil
		},
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"tools.config_path": {
		get: func(c *Config) string { return c.Tools.ConfigPath },
		set: func(c *Config, v string) error { c.Tools.ConfigPath = v; return nil },
	},
	"tools.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Tools.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for tools.watch: %w", err)
			}
			c.Tools.Watch = b
			return nil
		},
	},
	"event_stream.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.EventStream.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for event_stream.enabled: %w", err)
			}
			c.EventStream.Enabled = b
			return nil
		},
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

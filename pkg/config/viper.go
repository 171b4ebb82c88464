package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/turnpike-ai/turnpike/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TURNPIKE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TURNPIKE_SERVER_LISTEN, TURNPIKE_PROVIDER_NAME, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: TURNPIKE_SERVER_LISTEN, TURNPIKE_PROVIDER_API_KEY, etc.
	v.SetEnvPrefix("TURNPIKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.debug", d.Server.Debug)

	// Provider
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.upstream", d.Provider.Upstream)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", "")

	// Chat
	v.SetDefault("chat.max_tool_rounds", d.Chat.MaxToolRounds)
	v.SetDefault("chat.tool_timeout_secs", d.Chat.ToolTimeoutSecs)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Tools
	v.SetDefault("tools.config_path", d.Tools.ConfigPath)
	v.SetDefault("tools.watch", d.Tools.Watch)

	// Event stream
	v.SetDefault("event_stream.enabled", d.EventStream.Enabled)
	v.SetDefault("event_stream.brokers", d.EventStream.Brokers)
	v.SetDefault("event_stream.topic", d.EventStream.Topic)
}

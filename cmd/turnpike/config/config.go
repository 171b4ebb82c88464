// Package configcmder provides the config command for managing persistent
// turnpike configuration stored in the .turnpike/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent turnpike configuration.

Configuration is stored as config.toml in the .turnpike/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.debug,
  provider.name, provider.upstream, provider.model,
  chat.max_tool_rounds, chat.tool_timeout_secs,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  tools.config_path, tools.watch,
  event_stream.enabled, event_stream.topic

Use subcommands to get, set, or list configuration values:
  turnpike config set <key> <value>    Set a configuration value
  turnpike config get <key>            Get a configuration value
  turnpike config list                 List all configuration values

Examples:
  turnpike config set provider.name openai
  turnpike config set provider.upstream https://api.openai.com/v1
  turnpike config get provider.model
  turnpike config list`

const configShortDesc string = "Manage persistent turnpike configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// Package turnpikecmder
package turnpikecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/turnpike-ai/turnpike/cmd/turnpike/config"
	servecmder "github.com/turnpike-ai/turnpike/cmd/turnpike/serve"
	versioncmder "github.com/turnpike-ai/turnpike/cmd/turnpike/version"
)

const turnpikeLongDesc string = `Turnpike mediates chat turns between clients, language-model providers,
and external tools, streaming responses with tool execution and artifact
classification built in.

Run the server using:
  turnpike serve       Run the chat server`

const turnpikeShortDesc string = "Turnpike - Streaming tool-call chat server"

func NewTurnpikeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turnpike",
		Short: turnpikeShortDesc,
		Long:  turnpikeLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .turnpike/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the release version, overridden at build time via
// -ldflags "-X .../cmd/turnpike/version.Version=v1.2.3".
var Version = "dev"

const versionShortDesc string = "Print the turnpike version"

func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: versionShortDesc,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("turnpike %s %s/%s\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}

	return cmd
}

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/preflightci/preflight/pkg/constants"
)

// NewVersionCommand builds the version subcommand.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the " + constants.CLIName + " version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (%s/%s)\n", constants.CLIName, version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

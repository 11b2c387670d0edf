package main

import (
	"errors"
	"os"

	"github.com/preflightci/preflight/pkg/cli"
	"github.com/preflightci/preflight/pkg/console"
	"github.com/preflightci/preflight/pkg/constants"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		console.PrintError(err)
		os.Exit(constants.ExitRunError)
	}
}

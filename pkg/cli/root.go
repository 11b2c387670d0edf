// Package cli defines the preflight command tree. Commands stay thin:
// flag parsing and exit-code translation here, orchestration in
// pkg/pipeline, rendering in pkg/report and pkg/console.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightci/preflight/pkg/constants"
)

// ExitError carries a process exit code through cobra's error return
// without printing anything; whatever needed printing has already been
// printed by the command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// NewRootCommand builds the preflight command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.CLIName,
		Short: "Validate infrastructure artifacts with an ephemeral tool pipeline",
		Long: `Preflight runs a pipeline of external validator tools against a file or
directory. Tools already installed on the system are used as-is; missing
tools are provisioned into a disposable per-run environment that is
removed when the run ends, however it ends.

Exit codes: 0 when no stage fails, 1 when any stage reports findings,
2 when the run itself could not complete (bad target, unreadable
manifest).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Print tool output for every stage, not just failing ones")
	rootCmd.PersistentFlags().String("config", "", "Path to a settings file (default: environment and built-in defaults only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable styled output")

	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewStagesCommand())
	rootCmd.AddCommand(NewVersionCommand(version))

	return rootCmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preflightci/preflight/pkg/console"
	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/manifest"
)

// NewStagesCommand builds the stages subcommand, which lists the pipeline
// a target would run without running it.
func NewStagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages [target]",
		Short: "List the stages the validation pipeline would run",
		Long: `List the stages of the pipeline manifest that applies to a target,
in execution order, without resolving tools or running anything.

Examples:
  ` + constants.CLIName + ` stages
  ` + constants.CLIName + ` stages ./deploy/
  ` + constants.CLIName + ` stages --manifest ci/preflight.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			manifestPath, _ := cmd.Flags().GetString("manifest")
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				console.SetColorEnabled(false)
			}

			m, err := manifest.Discover(manifestPath, target)
			if err != nil {
				console.PrintError(err)
				return &ExitError{Code: constants.ExitRunError}
			}
			stages, err := m.Compile()
			if err != nil {
				console.PrintError(err)
				return &ExitError{Code: constants.ExitRunError}
			}

			source := m.Path
			if source == "" {
				source = "built-in default"
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				type stageInfo struct {
					ID    string   `json:"id"`
					Tool  string   `json:"tool"`
					Group int      `json:"group,omitempty"`
					Args  []string `json:"args,omitempty"`
					Hint  string   `json:"hint,omitempty"`
				}
				infos := make([]stageInfo, 0, len(stages))
				for _, s := range stages {
					infos = append(infos, stageInfo{ID: s.ID, Tool: s.Tool.Name, Group: s.Group, Args: s.Args, Hint: s.Hint})
				}
				data, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					console.PrintError(err)
					return &ExitError{Code: constants.ExitRunError}
				}
				fmt.Println(string(data))
				return nil
			}

			rows := make([][]string, 0, len(stages))
			for _, s := range stages {
				group := "-"
				if s.Group != 0 {
					group = strconv.Itoa(s.Group)
				}
				rows = append(rows, []string{s.ID, s.Tool.Name, group, strings.Join(s.Args, " ")})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   "Pipeline: " + source,
				Headers: []string{"Stage", "Tool", "Group", "Invocation"},
				Rows:    rows,
			}))
			return nil
		},
	}

	cmd.Flags().String("manifest", "", "Path to the pipeline manifest (default: discovered next to the target)")
	cmd.Flags().Bool("json", false, "Print the stage list as JSON")
	return cmd
}

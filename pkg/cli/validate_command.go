package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/preflightci/preflight/pkg/config"
	"github.com/preflightci/preflight/pkg/console"
	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/logger"
	"github.com/preflightci/preflight/pkg/manifest"
	"github.com/preflightci/preflight/pkg/pipeline"
	"github.com/preflightci/preflight/pkg/report"
	"github.com/preflightci/preflight/pkg/toolenv"
)

var validateLog = logger.New("cli:validate")

// ValidateConfig holds the resolved inputs of one validate invocation:
// settings after flag overrides, plus the flags that have no settings
// equivalent.
type ValidateConfig struct {
	Target       string
	ManifestPath string
	StageFilter  []string
	Settings     config.Settings
	JSONOutput   bool
	Watch        bool
	Verbose      bool
}

// NewValidateCommand builds the validate subcommand.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <target>",
		Short: "Run the validation pipeline against a file or directory",
		Long: `Run the configured validation pipeline against a target.

The pipeline comes from the manifest next to the target (.preflight.yaml),
from --manifest, or from the built-in default pipeline. Stages run in
declared order; a failing stage does not stop later stages, so one run
reports every problem.

Examples:
  ` + constants.CLIName + ` validate ./deploy/
  ` + constants.CLIName + ` validate playbook.yml --stage yaml-syntax --stage ansible-lint
  ` + constants.CLIName + ` validate Dockerfile --manifest ci/preflight.yaml --json
  ` + constants.CLIName + ` validate ./deploy/ --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveValidateConfig(cmd, args[0])
			if err != nil {
				console.PrintError(err)
				return &ExitError{Code: constants.ExitRunError}
			}
			if cfg.Watch {
				return runWatch(cmd.Context(), cfg)
			}
			return runOnce(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("manifest", "", "Path to the pipeline manifest (default: discovered next to the target)")
	cmd.Flags().StringArray("stage", nil, "Run only the named stage; repeatable")
	cmd.Flags().Int("timeout", 0, "Per-stage timeout in seconds (default 300)")
	cmd.Flags().Bool("parallel", false, "Run grouped stages concurrently")
	cmd.Flags().Bool("keep-env", false, "Keep the ephemeral tool environment for debugging")
	cmd.Flags().Bool("force-provision", false, "Provision every tool even when a system copy exists")
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	cmd.Flags().Bool("watch", false, "Re-run validation when the target changes")

	return cmd
}

// resolveValidateConfig layers flags over settings (which already layer
// file over env over defaults).
func resolveValidateConfig(cmd *cobra.Command, target string) (ValidateConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(configPath)
	if err != nil {
		return ValidateConfig{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		settings.TimeoutSeconds, _ = flags.GetInt("timeout")
		if settings.TimeoutSeconds <= 0 {
			return ValidateConfig{}, fmt.Errorf("--timeout must be positive, got %d", settings.TimeoutSeconds)
		}
	}
	if flags.Changed("parallel") {
		settings.Parallel, _ = flags.GetBool("parallel")
	}
	if flags.Changed("keep-env") {
		settings.KeepEnv, _ = flags.GetBool("keep-env")
	}
	if flags.Changed("force-provision") {
		settings.ForceProvision, _ = flags.GetBool("force-provision")
	}
	if flags.Changed("no-color") {
		settings.NoColor, _ = flags.GetBool("no-color")
	}
	if settings.NoColor {
		console.SetColorEnabled(false)
	}

	manifestPath, _ := flags.GetString("manifest")
	stageFilter, _ := flags.GetStringArray("stage")
	jsonOutput, _ := flags.GetBool("json")
	watch, _ := flags.GetBool("watch")
	verbose, _ := flags.GetBool("verbose")

	return ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		StageFilter:  stageFilter,
		Settings:     settings,
		JSONOutput:   jsonOutput,
		Watch:        watch,
		Verbose:      verbose,
	}, nil
}

// runOnce executes one validation run and translates it into an exit code.
func runOnce(parent context.Context, cfg ValidateConfig) error {
	result, err := RunValidation(parent, cfg)
	if err != nil {
		console.PrintError(err)
		return &ExitError{Code: constants.ExitRunError}
	}

	if err := printReport(result, cfg); err != nil {
		console.PrintError(err)
		return &ExitError{Code: constants.ExitRunError}
	}
	if code := report.ExitCode(result); code != constants.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// RunValidation performs one complete run: manifest discovery, stage
// compilation, tool resolution, execution, and environment teardown. The
// teardown is registered before the first stage can possibly run and fires
// on every return path, including interrupts.
func RunValidation(parent context.Context, cfg ValidateConfig) (*pipeline.RunResult, error) {
	stages, err := loadStages(cfg)
	if err != nil {
		return nil, err
	}
	validateLog.Printf("validating %s with %d stages", cfg.Target, len(stages))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := toolenv.NewRegistry(ctx, toolenv.CommandInstaller{}, toolenv.RegistryOptions{
		ForceProvision: cfg.Settings.ForceProvision,
		InstallRoot:    cfg.Settings.InstallRoot,
	})
	defer releaseEnvironment(registry, cfg.Settings.KeepEnv)

	runner := pipeline.NewCommandRunner(cfg.Settings.StageTimeout())
	orchestrator := pipeline.NewOrchestrator(runner, registry)
	orchestrator.Parallel = cfg.Settings.Parallel

	result, err := orchestrator.Run(ctx, cfg.Target, stages)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("validation interrupted")
		}
		return nil, err
	}
	return result, nil
}

func loadStages(cfg ValidateConfig) ([]pipeline.Stage, error) {
	m, err := manifest.Discover(cfg.ManifestPath, cfg.Target)
	if err != nil {
		return nil, err
	}
	stages, err := m.Compile()
	if err != nil {
		return nil, err
	}

	stages, unknown := pipeline.FilterStages(stages, cfg.StageFilter)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown stage(s): %v", unknown)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no stages to run")
	}
	return stages, nil
}

// releaseEnvironment tears down the run's ephemeral environment. A cleanup
// failure is an operational nuisance, not a validation result, so it is
// reported on stderr without touching the exit code.
func releaseEnvironment(registry *toolenv.Registry, keep bool) {
	env := registry.Environment()
	if env == nil {
		return
	}
	if keep {
		env.Keep()
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Keeping tool environment: "+env.Root))
	}
	if err := env.Release(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(err.Error()))
	}
}

func printReport(result *pipeline.RunResult, cfg ValidateConfig) error {
	if cfg.JSONOutput {
		out, err := report.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	fmt.Print(report.Format(result))
	for _, stage := range result.Stages {
		if stage.Output == "" {
			continue
		}
		if cfg.Verbose || stage.Outcome == pipeline.Fail {
			fmt.Printf("\n--- %s output ---\n%s\n", stage.StageID, stage.Output)
		}
	}
	return nil
}

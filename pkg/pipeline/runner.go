package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/logger"
	"github.com/preflightci/preflight/pkg/procutil"
)

var runnerLog = logger.New("pipeline:runner")

// TargetPlaceholder in a stage's argument template expands to the target
// path at execution time.
const TargetPlaceholder = "{target}"

// Runner executes a single stage against a target. The orchestrator depends
// on this interface so tests can substitute a recording fake.
type Runner interface {
	RunStage(ctx context.Context, stage Stage, exe ExecutableHandle, target string) StageResult
}

// CommandRunner runs stages as external subprocesses with a bounded
// lifetime. Stdout and stderr are captured together since validators split
// findings across both streams inconsistently.
type CommandRunner struct {
	// DefaultTimeout applies to stages without their own Timeout.
	DefaultTimeout time.Duration
}

// NewCommandRunner returns a runner with the given default stage timeout.
func NewCommandRunner(defaultTimeout time.Duration) *CommandRunner {
	return &CommandRunner{DefaultTimeout: defaultTimeout}
}

// RunStage invokes the stage's tool and classifies the result with the
// stage's policy. A stage that exceeds its timeout is killed and reported
// as Fail; the run continues with later stages.
func (r *CommandRunner) RunStage(ctx context.Context, stage Stage, exe ExecutableHandle, target string) StageResult {
	timeout := stage.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = constants.DefaultStageTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := ExpandArgs(stage.Args, target)
	runnerLog.Printf("stage %s: exec %s %s (timeout %s)", stage.ID, exe.Path, strings.Join(args, " "), timeout)

	started := time.Now()
	cmd := exec.CommandContext(runCtx, exe.Path, args...)
	procutil.KillGroupOnCancel(cmd)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(started)

	result := StageResult{
		StageID:  stage.ID,
		Duration: elapsed,
		Output:   string(output),
		Hint:     stage.Hint,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Outcome = Fail
		result.ExitCode = -1
		result.Detail = fmt.Sprintf("timed out after %s", timeout)
		return result
	}
	if ctx.Err() != nil {
		result.Outcome = Fail
		result.ExitCode = -1
		result.Detail = "canceled"
		return result
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The process never started. The tool resolved earlier, so
			// this is an execution failure, not an availability one.
			result.Outcome = Fail
			result.ExitCode = -1
			result.Detail = fmt.Sprintf("failed to start: %v", err)
			return result
		}
	}

	result.ExitCode = exitCode
	result.Outcome, result.Detail = stage.Policy.Classify(exitCode, string(output))
	runnerLog.Printf("stage %s: %s (exit %d, %s)", stage.ID, result.Outcome, exitCode, elapsed)
	return result
}

// ExpandArgs substitutes the target placeholder in an argument template.
func ExpandArgs(template []string, target string) []string {
	args := make([]string, len(template))
	for i, a := range template {
		args[i] = strings.ReplaceAll(a, TargetPlaceholder, target)
	}
	return args
}

// Package pipeline implements the validation pipeline core: stage and tool
// descriptions, result classification, stage execution, and the orchestrator
// state machine. Everything here is presentation-free; rendering lives in
// pkg/report and pkg/console.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToolSpec identifies one external validator dependency. ToolSpecs are
// read-only configuration shared across runs.
type ToolSpec struct {
	// Name is the executable name looked up on the system search path.
	Name string
	// Version is an optional constraint (hashicorp/go-version syntax,
	// e.g. ">= 1.33"). When set, a system copy that does not satisfy the
	// constraint is treated as absent.
	Version string
	// VersionArgs are passed to the tool to print its version
	// (default: --version).
	VersionArgs []string
	// VersionPattern extracts the version number from the tool's version
	// output (default: first X.Y or X.Y.Z group).
	VersionPattern string
	// Install is the argv template that installs the tool into an ephemeral
	// environment. The "{prefix}" placeholder expands to the environment
	// root. Empty means the tool cannot be provisioned.
	Install []string
	// Bin is the executable's path relative to the install prefix
	// (default: bin/<name>).
	Bin string
}

// Stage is one validation step backed by exactly one tool invocation.
// Stages are read-only configuration shared across runs.
type Stage struct {
	// ID names the stage in reports and in --stage filters.
	ID string
	// Tool is the external tool this stage invokes.
	Tool ToolSpec
	// Args is the argument template; the "{target}" placeholder expands to
	// the target path.
	Args []string
	// Policy classifies the tool's exit code and output into an Outcome.
	Policy Policy
	// Group marks parallel-safe stages: stages sharing a non-zero group may
	// run concurrently in parallel mode. Group 0 stages always run alone.
	Group int
	// Timeout overrides the run-wide stage timeout when non-zero.
	Timeout time.Duration
	// Hint is static remediation text shown when the stage fails.
	Hint string
}

// Outcome is the qualitative result of one stage.
type Outcome string

const (
	// Pass means the tool ran and reported no findings.
	Pass Outcome = "pass"
	// Fail means the tool reported findings, could not be classified, or
	// timed out. Any Fail makes the whole run fail.
	Fail Outcome = "fail"
	// Warn means the tool reported non-blocking findings. Warn does not
	// fail the run.
	Warn Outcome = "warn"
	// Skip means the tool was unavailable and could not be provisioned, so
	// the stage never ran. Skip does not fail the run.
	Skip Outcome = "skip"
)

// StageResult records one executed (or skipped) stage.
type StageResult struct {
	StageID  string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	Output   string        `json:"-"`
	Hint     string        `json:"hint,omitempty"`
}

// RunResult aggregates the stage results of one orchestrator invocation.
// It is built incrementally while the pipeline runs and becomes immutable
// once finalized.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Target    string        `json:"target"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Stages    []StageResult `json:"stages"`
	Overall   Outcome       `json:"overall"`

	finalized bool
}

// NewRunResult starts an empty result for the given target.
func NewRunResult(target string) *RunResult {
	return &RunResult{
		RunID:     uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
		Overall:   Pass,
	}
}

// Append records a stage result. Appending after Finalize is a programming
// error and is ignored.
func (r *RunResult) Append(result StageResult) {
	if r.finalized {
		return
	}
	r.Stages = append(r.Stages, result)
}

// Finalize computes the overall outcome and freezes the result. The run
// fails iff any stage failed; Warn and Skip never flip the overall outcome.
func (r *RunResult) Finalize() {
	if r.finalized {
		return
	}
	r.Duration = time.Since(r.StartedAt)
	r.Overall = Pass
	for _, s := range r.Stages {
		if s.Outcome == Fail {
			r.Overall = Fail
			break
		}
	}
	r.finalized = true
}

// Failed reports whether any stage failed.
func (r *RunResult) Failed() bool {
	for _, s := range r.Stages {
		if s.Outcome == Fail {
			return true
		}
	}
	return false
}

// Counts returns the number of stages per outcome.
func (r *RunResult) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, s := range r.Stages {
		counts[s.Outcome]++
	}
	return counts
}

// ExecutableHandle is a resolved, callable tool.
type ExecutableHandle struct {
	// Path is the absolute path of the executable.
	Path string
	// Ephemeral is true when the tool was provisioned into the run's
	// disposable environment rather than found on the system.
	Ephemeral bool
}

// Resolver yields callable handles for tools, provisioning missing ones.
// Implementations must return an error wrapping ErrToolUnavailable when a
// tool is neither installed nor provisionable; callers degrade such stages
// to Skip instead of aborting the run.
type Resolver interface {
	Resolve(tool ToolSpec) (ExecutableHandle, error)
}

// ErrInvalidTarget indicates the target path is missing or unreadable.
// This is an orchestrator-level error: no stages run and no report is
// produced.
var ErrInvalidTarget = errors.New("invalid target")

// ErrToolUnavailable indicates a tool is not installed and could not be
// provisioned. Stages depending on it are skipped, not failed.
var ErrToolUnavailable = errors.New("tool unavailable")

// InvalidTargetError wraps ErrInvalidTarget with the offending path.
func InvalidTargetError(target string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTarget, target, cause)
	}
	return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
}

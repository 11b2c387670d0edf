// Package constants defines shared defaults and exit codes for preflight.
package constants

import "time"

// Process exit codes. Validation findings and orchestrator failures are
// deliberately distinct so CI scripts can tell "the artifact is bad" from
// "the run itself broke".
const (
	// ExitOK means no stage reported Fail (Warn and Skip do not fail a run).
	ExitOK = 0
	// ExitFindings means at least one stage reported Fail.
	ExitFindings = 1
	// ExitRunError means the orchestrator could not produce a report:
	// bad invocation, missing target, unreadable manifest.
	ExitRunError = 2
)

// DefaultStageTimeout bounds each stage's subprocess. The shell scripts this
// tool replaces had no bound at all and could hang forever on a wedged
// validator.
const DefaultStageTimeout = 5 * time.Minute

// DefaultManifestNames are probed in order inside the target (or its parent
// directory for file targets) when --manifest is not given.
var DefaultManifestNames = []string{".preflight.yaml", ".preflight.yml", "preflight.yaml"}

// EnvPrefix is the prefix for environment variable configuration overrides.
const EnvPrefix = "PREFLIGHT_"

// EnvDirPattern names the per-run ephemeral tool directories created under
// the system temp directory.
const EnvDirPattern = "preflight-env-*"

// CLIName is the binary name used in help text and hints.
const CLIName = "preflight"

// WatchDebounce coalesces filesystem event bursts in --watch mode before
// re-running the pipeline.
const WatchDebounce = 300 * time.Millisecond

package toolenv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/preflightci/preflight/pkg/logger"
	"github.com/preflightci/preflight/pkg/pipeline"
	"github.com/preflightci/preflight/pkg/procutil"
)

var registryLog = logger.New("toolenv:registry")

// defaultVersionPattern extracts the first dotted version number from a
// tool's version output.
var defaultVersionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// versionProbeTimeout bounds the "tool --version" probe so a wedged binary
// cannot stall resolution.
const versionProbeTimeout = 10 * time.Second

// RegistryOptions tune tool resolution.
type RegistryOptions struct {
	// ForceProvision skips the system lookup so every tool is installed
	// into the ephemeral environment. Used for reproducing CI conditions
	// locally where the host's tool versions must not leak into the run.
	ForceProvision bool
	// InstallRoot is the parent directory for the ephemeral environment
	// (default: system temp directory).
	InstallRoot string
}

// Registry resolves tools to callable executables. System installations win
// when present and version-compatible; everything else goes through the
// installer into a single lazily-created environment shared by the run.
// Resolution results are cached per run, so a tool shared by several stages
// is resolved once. Registry implements pipeline.Resolver.
type Registry struct {
	ctx       context.Context
	installer Installer
	opts      RegistryOptions

	mu       sync.Mutex
	env      *Environment
	handles  map[string]pipeline.ExecutableHandle
	failures map[string]error
}

// NewRegistry creates a registry for one run. ctx bounds install
// subprocesses started during resolution.
func NewRegistry(ctx context.Context, installer Installer, opts RegistryOptions) *Registry {
	return &Registry{
		ctx:       ctx,
		installer: installer,
		opts:      opts,
		handles:   make(map[string]pipeline.ExecutableHandle),
		failures:  make(map[string]error),
	}
}

// Resolve returns a callable handle for the tool, provisioning it into the
// run's ephemeral environment when no suitable system copy exists. Errors
// wrap pipeline.ErrToolUnavailable; a tool that failed once stays failed
// for the rest of the run.
func (r *Registry) Resolve(tool pipeline.ToolSpec) (pipeline.ExecutableHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle, ok := r.handles[tool.Name]; ok {
		return handle, nil
	}
	if err, ok := r.failures[tool.Name]; ok {
		return pipeline.ExecutableHandle{}, err
	}

	handle, err := r.resolveLocked(tool)
	if err != nil {
		if _, ok := r.failures[tool.Name]; !ok {
			r.failures[tool.Name] = err
		}
		return pipeline.ExecutableHandle{}, r.failures[tool.Name]
	}
	r.handles[tool.Name] = handle
	return handle, nil
}

func (r *Registry) resolveLocked(tool pipeline.ToolSpec) (pipeline.ExecutableHandle, error) {
	if !r.opts.ForceProvision {
		if path, err := exec.LookPath(tool.Name); err == nil {
			ok, reason := r.versionAcceptable(path, tool)
			if ok {
				registryLog.Printf("%s: using system installation at %s", tool.Name, path)
				return pipeline.ExecutableHandle{Path: path}, nil
			}
			registryLog.Printf("%s: system installation rejected: %s", tool.Name, reason)
		}
	}

	env, err := r.environmentLocked()
	if err != nil {
		return pipeline.ExecutableHandle{}, fmt.Errorf("%w: %s: %v", pipeline.ErrToolUnavailable, tool.Name, err)
	}

	path, err := r.installer.Install(r.ctx, env, tool)
	if err != nil {
		return pipeline.ExecutableHandle{}, wrapUnavailable(tool.Name, err)
	}
	return pipeline.ExecutableHandle{Path: path, Ephemeral: true}, nil
}

// environmentLocked creates the shared environment on first use. Creation
// happens before any install runs, so the cleanup guard held by the caller
// covers even a half-finished first install.
func (r *Registry) environmentLocked() (*Environment, error) {
	if r.env != nil {
		return r.env, nil
	}
	env, err := NewEnvironment(r.opts.InstallRoot)
	if err != nil {
		return nil, err
	}
	r.env = env
	return env, nil
}

// Environment returns the run's ephemeral environment, or nil when no tool
// needed provisioning. The caller owns its release.
func (r *Registry) Environment() *Environment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.env
}

// versionAcceptable probes a system tool against its declared version
// constraint. A tool without a constraint is always acceptable. Probe
// failures reject the system copy rather than failing resolution: the
// install path may still produce a working tool.
func (r *Registry) versionAcceptable(path string, tool pipeline.ToolSpec) (bool, string) {
	if tool.Version == "" {
		return true, ""
	}

	constraint, err := goversion.NewConstraint(tool.Version)
	if err != nil {
		return false, fmt.Sprintf("invalid version constraint %q: %v", tool.Version, err)
	}

	probeCtx, cancel := context.WithTimeout(r.ctx, versionProbeTimeout)
	defer cancel()

	args := tool.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	probe := exec.CommandContext(probeCtx, path, args...)
	procutil.KillGroupOnCancel(probe)
	output, err := probe.CombinedOutput()
	if err != nil {
		return false, fmt.Sprintf("version probe failed: %v", err)
	}

	pattern := defaultVersionPattern
	if tool.VersionPattern != "" {
		pattern, err = regexp.Compile(tool.VersionPattern)
		if err != nil {
			return false, fmt.Sprintf("invalid version pattern %q: %v", tool.VersionPattern, err)
		}
	}
	match := pattern.FindStringSubmatch(string(output))
	if len(match) < 2 {
		return false, fmt.Sprintf("could not find a version in %q", string(output))
	}

	found, err := goversion.NewVersion(match[1])
	if err != nil {
		return false, fmt.Sprintf("unparseable version %q: %v", match[1], err)
	}
	if !constraint.Check(found) {
		return false, fmt.Sprintf("version %s does not satisfy %s", found, constraint)
	}
	return true, ""
}

func wrapUnavailable(name string, err error) error {
	// Installers already tag missing install commands; avoid double
	// wrapping.
	if errors.Is(err, pipeline.ErrToolUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", pipeline.ErrToolUnavailable, name, err)
}

package toolenv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/preflightci/preflight/pkg/fileutil"
	"github.com/preflightci/preflight/pkg/logger"
	"github.com/preflightci/preflight/pkg/pipeline"
	"github.com/preflightci/preflight/pkg/procutil"
)

var installLog = logger.New("toolenv:installer")

// PrefixPlaceholder in a tool's install argv expands to the environment
// root directory.
const PrefixPlaceholder = "{prefix}"

// installTimeout bounds one tool installation. Separate from stage
// timeouts: installs hit the network and are legitimately slower than
// validators, but must still not hang a run forever.
const installTimeout = 10 * time.Minute

// Installer installs one tool into an environment and returns the
// executable's absolute path. Implemented by CommandInstaller; tests
// substitute fakes.
type Installer interface {
	Install(ctx context.Context, env *Environment, tool pipeline.ToolSpec) (string, error)
}

// CommandInstaller runs each tool's declared install argv as a subprocess
// with the environment root substituted for the prefix placeholder.
type CommandInstaller struct{}

// Install runs the tool's install command and verifies the expected
// executable appeared under the prefix. A tool without an install command
// is unavailable by definition.
func (CommandInstaller) Install(ctx context.Context, env *Environment, tool pipeline.ToolSpec) (string, error) {
	if len(tool.Install) == 0 {
		return "", fmt.Errorf("%w: %s is not installed and has no install command", pipeline.ErrToolUnavailable, tool.Name)
	}

	argv := make([]string, len(tool.Install))
	for i, a := range tool.Install {
		argv[i] = strings.ReplaceAll(a, PrefixPlaceholder, env.Root)
	}

	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	installLog.Printf("installing %s: %s", tool.Name, strings.Join(argv, " "))
	cmd := exec.CommandContext(installCtx, argv[0], argv[1:]...)
	procutil.KillGroupOnCancel(cmd)
	cmd.Dir = env.Root
	cmd.Env = os.Environ()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("install of %s failed: %w\n%s", tool.Name, err, strings.TrimSpace(string(output)))
	}

	bin := tool.Bin
	if bin == "" {
		bin = filepath.Join("bin", tool.Name)
	}
	path := filepath.Join(env.Root, bin)
	if !fileutil.IsExecutable(path) {
		return "", fmt.Errorf("install of %s completed but %s is not an executable", tool.Name, path)
	}
	installLog.Printf("installed %s at %s", tool.Name, path)
	return path, nil
}

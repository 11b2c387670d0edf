// Package toolenv provisions external validator tools. It resolves tools
// against the system first and falls back to installing them into a
// disposable per-run directory that is torn down when the run ends,
// whatever way the run ends. Nothing here mutates the host outside that
// directory.
package toolenv

import (
	"fmt"
	"os"
	"sync"

	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/fileutil"
	"github.com/preflightci/preflight/pkg/logger"
)

var envLog = logger.New("toolenv:environment")

// Environment is one run's disposable install prefix. It is created lazily,
// only when some tool actually needs provisioning, and released exactly
// once no matter how many exit paths race to do it.
type Environment struct {
	// Root is the absolute path of the environment directory.
	Root string

	releaseOnce sync.Once
	releaseErr  error
	keep        bool
}

// NewEnvironment creates the environment directory under parent (or the
// system temp directory when parent is empty). The directory exists and is
// empty on return, so the caller can register cleanup before the first
// install starts.
func NewEnvironment(parent string) (*Environment, error) {
	root, err := os.MkdirTemp(parent, constants.EnvDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeral environment: %w", err)
	}
	envLog.Printf("created environment %s", root)
	return &Environment{Root: root}, nil
}

// Keep marks the environment to survive Release, for debugging failed
// installs.
func (e *Environment) Keep() {
	e.keep = true
}

// Kept reports whether the environment was marked to survive cleanup.
func (e *Environment) Kept() bool {
	return e.keep
}

// Release deletes the environment directory. It is idempotent: every call
// after the first returns the first call's error. A kept environment is
// left in place and Release reports success.
func (e *Environment) Release() error {
	e.releaseOnce.Do(func() {
		if e.keep {
			envLog.Printf("keeping environment %s", e.Root)
			return
		}
		root, err := fileutil.ValidateAbsolutePath(e.Root)
		if err != nil {
			e.releaseErr = fmt.Errorf("refusing to delete environment: %w", err)
			return
		}
		envLog.Printf("releasing environment %s", root)
		if err := os.RemoveAll(root); err != nil {
			e.releaseErr = fmt.Errorf("failed to delete environment %s: %w", root, err)
		}
	})
	return e.releaseErr
}

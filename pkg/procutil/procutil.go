// Package procutil hardens subprocess termination. Validators and package
// managers routinely fork workers; killing only the direct child would let
// those grandchildren run past the deadline while holding open pipes and
// file handles inside directories about to be deleted.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// killWait bounds how long output collection may linger after cancellation
// before remaining pipe readers are forcibly closed.
const killWait = 5 * time.Second

// KillGroupOnCancel places the command in its own process group and makes
// context cancellation SIGKILL the entire group, not just the direct
// child. Must be called before the command is started.
func KillGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		// Negative pid addresses the whole process group.
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	// A grandchild that escaped the group could still hold the output
	// pipes open; WaitDelay keeps that from blocking Wait forever.
	cmd.WaitDelay = killWait
}

//go:build unix

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// KillGroupOnCancel starts cmd in its own process group and makes context
// cancellation kill the whole group. Processes the command spawned hold its
// output pipes open, so killing only the direct child is not enough to stop
// a stuck case. Commands not bound to a context are left untouched.
func KillGroupOnCancel(cmd *exec.Cmd) {
	if cmd.Cancel == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}

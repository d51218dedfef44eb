//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// setProcessGroup runs cmd in its own process group and makes
// cancellation kill the whole group (negative PID addresses every
// process in it), so children spawned by the command die with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// ESRCH here means the group already exited; Wait surfaces
		// the real outcome either way.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

//go:build windows

package daemon

import "os/exec"

// setProcessGroup is a no-op on Windows: there is no process group to
// signal, so a cancelled run relies on WaitDelay to abandon pipes
// still held by the command's children.
func setProcessGroup(*exec.Cmd) {}

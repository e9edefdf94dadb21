//go:build unix

package launcher

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const replaceSupported = true

// sysExec replaces the current process image. It only returns on failure.
func sysExec(argv0 string, argv, env []string) error {
	return unix.Exec(argv0, argv, env)
}

// waitExitCode extracts the exit code from a finished child, mapping death
// by signal to the 128+signal convention shells use.
func waitExitCode(ee *exec.ExitError) int {
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ee.ExitCode()
}

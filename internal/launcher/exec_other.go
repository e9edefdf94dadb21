//go:build !unix

package launcher

import (
	"errors"
	"os/exec"
)

const replaceSupported = false

// sysExec keeps the launcher wiring uniform across platforms. Launch never
// reaches it here: replaceSupported routes everything through Run.
func sysExec(_ string, _, _ []string) error {
	return errors.New("process replacement not supported on this platform")
}

func waitExitCode(ee *exec.ExitError) int {
	return ee.ExitCode()
}

//go:build !windows
// +build !windows

package osext

import (
	"fmt"
	"os/exec"
	"syscall"
)

func terminateByName(name string) error {
	if err := exec.Command("killall", name).Run(); err != nil { //nolint:gosec
		return fmt.Errorf("killall %q: %w", name, err)
	}
	return nil
}

// Detach makes cmd start in its own session, so that it is not tied to the
// lifetime or the signals of the calling process.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

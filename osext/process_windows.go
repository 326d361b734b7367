//go:build windows
// +build windows

package osext

import (
	"fmt"
	"os/exec"
	"syscall"
)

// DETACHED_PROCESS from the Windows process creation flags.
const detachedProcess = 0x00000008

func terminateByName(name string) error {
	if err := exec.Command("taskkill", "/F", "/T", "/IM", name).Run(); err != nil { //nolint:gosec
		return fmt.Errorf("taskkill %q: %w", name, err)
	}
	return nil
}

// Detach makes cmd start without a console and in its own process group,
// so that it is not tied to the lifetime of the calling process.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}

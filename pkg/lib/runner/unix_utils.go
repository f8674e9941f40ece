//go:build unix

package runner

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup sends SIGKILL to the process group led by pid. A group that is
// already gone counts as killed.
func killGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	// Negative pid addresses the process group.
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	return nil
}

func signalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return sig.String()
}

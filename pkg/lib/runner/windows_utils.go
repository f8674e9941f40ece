//go:build windows

package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func getSysProcAttr(string) (*procAttr, error) {
	return &procAttr{
		Raw: &syscall.SysProcAttr{
			HideWindow:    true,
			CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
		},
	}, nil
}

// killTree has taskkill walk the child tree, since Windows has no process
// group kill that reaches grandchildren.
func killTree(ctx context.Context, _ string, pid int) error {
	out, err := exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, out)
	}
	return nil
}

func cleanupTree(string) error {
	return nil
}

func signalName(sig syscall.Signal) string {
	return sig.String()
}

//go:build unix && !linux

package runner

import (
	"context"
	"syscall"
)

func getSysProcAttr(string) (*procAttr, error) {
	return &procAttr{
		Raw: &syscall.SysProcAttr{
			// New process group to manage children as a unit
			Setpgid: true,
		},
	}, nil
}

func killTree(_ context.Context, _ string, pid int) error {
	return killGroup(pid)
}

func cleanupTree(string) error {
	return nil
}

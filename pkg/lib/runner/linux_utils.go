//go:build linux

package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
)

const (
	cgroupFS   = "/sys/fs/cgroup"
	cgroupRoot = cgroupFS + "/cpplive"
)

var (
	cgroupInitOnce sync.Once
	cgroupUsable   bool
)

// cgroupsUsable reports whether runs can get their own cgroup v2. That needs
// root and a unified hierarchy; anything else falls back to process groups.
func cgroupsUsable() bool {
	cgroupInitOnce.Do(func() {
		if os.Geteuid() != 0 {
			return
		}
		if _, err := os.Stat(filepath.Join(cgroupFS, "cgroup.controllers")); err != nil {
			return
		}
		if err := os.MkdirAll(cgroupRoot, 0o755); err != nil {
			logger.WithError(err).Debug("cgroup root unavailable, using process groups")
			return
		}
		cgroupUsable = true
	})
	return cgroupUsable
}

func getSysProcAttr(runID string) (*procAttr, error) {
	attr := &procAttr{
		Raw: &syscall.SysProcAttr{
			// New process group to manage children as a unit
			Setpgid: true,
		},
	}
	if !cgroupsUsable() {
		return attr, nil
	}

	cgDir := filepath.Join(cgroupRoot, runID)
	if err := os.MkdirAll(cgDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Open(cgDir)
	if err != nil {
		_ = os.Remove(cgDir)
		return nil, err
	}

	attr.File = f
	attr.Raw.UseCgroupFD = true
	attr.Raw.CgroupFD = int(f.Fd())
	return attr, nil
}

// killTree prefers cgroup.kill, which also catches descendants that moved to
// another process group, and falls back to killing the process group.
func killTree(_ context.Context, runID string, pid int) error {
	var result *multierror.Error
	if cgroupsUsable() {
		err := os.WriteFile(filepath.Join(cgroupRoot, runID, "cgroup.kill"), []byte("1"), 0o644)
		if err == nil {
			return nil
		}
		result = multierror.Append(result, err)
	}
	if err := killGroup(pid); err != nil {
		result = multierror.Append(result, err)
		return result.ErrorOrNil()
	}
	return nil
}

func cleanupTree(runID string) error {
	if !cgroupsUsable() {
		return nil
	}
	return os.Remove(filepath.Join(cgroupRoot, runID))
}

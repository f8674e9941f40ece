//go:build linux

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Runs only as root on a cgroup v2 host
func TestCgroup(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("Skipping: not running as root")
	}
	if !cgroupsUsable() {
		t.Skip("Skipping: cgroup v2 not available")
	}

	s, _ := newTestSupervisor(t)
	if err := s.Start("sh", []string{"-c", "sleep 60"}, true, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	runID := s.RunID()
	procsData, err := os.ReadFile(filepath.Join(cgroupRoot, runID, "cgroup.procs"))
	if err != nil {
		t.Fatalf("reading cgroup.procs failed: %v", err)
	}

	// Check that pid was attached to cgroup
	pid := fmt.Sprint(s.current.pid)
	if procsStr := strings.TrimSpace(string(procsData)); procsStr != pid {
		t.Fatalf("cgroup fail: %s. Expected: %s", procsStr, pid)
	}

	end := s.WaitForEnd()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case <-end:
	case <-time.After(5 * time.Second):
		t.Fatalf("process did not stop in time")
	}

	// The cgroup directory is removed once the run is reaped.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(cgroupRoot, runID)); os.IsNotExist(err) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("cgroup %s was not cleaned up", runID)
}

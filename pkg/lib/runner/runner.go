// Package runner supervises at most one external process at a time.
//
// The Supervisor starts the process in its own process group (and, when
// running as root on Linux, in its own cgroup) so that Stop can take down
// the whole tree the process spawned, not just the direct child. Output
// from both standard streams is shaped (line cap, optional timestamps) and
// appended to a Sink.
package runner

import (
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

var logger = logging.For("runner")

// How long Wait keeps copying output after the process itself has exited.
// Grandchildren that escaped the process group may hold the pipes open.
const outputWaitDelay = 2 * time.Second

// Sink receives shaped output. Clear empties it before a fresh run.
type Sink interface {
	io.Writer
	Clear()
}

// Supervisor owns the lifecycle of a single external process.
//
// Starting over a live process is not prevented here: callers are expected
// to Stop and wait for the previous process first.
type Supervisor struct {
	mu      sync.Mutex
	current *processEntry

	output *outputShaper
}

type processEntry struct {
	id      string
	command lib.Command
	cmd     *exec.Cmd
	pid     int
	start   time.Time

	done   chan struct{}
	exited atomic.Bool
	exit   lib.ExitSignal // written once, before done is closed
}

// NewSupervisor creates a Supervisor writing to sink.
func NewSupervisor(sink Sink) *Supervisor {
	return &Supervisor{output: newOutputShaper(sink)}
}

func (s *Supervisor) live() *processEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.current.running() {
		return nil
	}
	return s.current
}

func (pe *processEntry) running() bool {
	return pe.pid > 0 && !pe.exited.Load()
}

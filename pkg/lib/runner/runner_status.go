package runner

import (
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
)

// IsRunning reports whether a process was started, has a pid, and has not
// reported its exit yet.
func (s *Supervisor) IsRunning() bool {
	return s.live() != nil
}

// WaitForEnd returns a channel that receives exactly one ExitSignal: the
// AlreadyEnded sentinel right away if nothing is live, otherwise the exit
// of the current process once it terminates.
func (s *Supervisor) WaitForEnd() <-chan lib.ExitSignal {
	ch := make(chan lib.ExitSignal, 1)

	pe := s.live()
	if pe == nil {
		ch <- lib.AlreadyEnded()
		close(ch)
		return ch
	}

	go func() {
		<-pe.done
		ch <- pe.exit
		close(ch)
	}()
	return ch
}

// RunID identifies the most recently started process, live or not.
func (s *Supervisor) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.id
}

// LastCommand returns what the most recent Start launched.
func (s *Supervisor) LastCommand() (lib.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return lib.Command{}, false
	}
	return s.current.command, true
}

// LastExit returns how the most recent process ended, once it has.
func (s *Supervisor) LastExit() (lib.ExitSignal, bool) {
	s.mu.Lock()
	pe := s.current
	s.mu.Unlock()
	if pe == nil || !pe.exited.Load() {
		return lib.ExitSignal{}, false
	}
	<-pe.done
	return pe.exit, true
}

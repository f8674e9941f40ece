package runner

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
)

// Start launches command with args in dir. An empty command is a no-op.
//
// With clearOutput set, the line counter is reset and the sink cleared
// before launching. Standard input is /dev/null; standard output and
// standard error are shaped into the sink.
func (s *Supervisor) Start(command string, args []string, clearOutput bool, dir string) error {
	if command == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clearOutput {
		s.output.reset()
	}

	runID := lib.NewID()

	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.WaitDelay = outputWaitDelay

	sysProcAttr, err := getSysProcAttr(runID)
	if err != nil {
		return fmt.Errorf("prepare process attributes: %w", err)
	}
	cmd.SysProcAttr = sysProcAttr.Raw

	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = &streamWriter{shaper: s.output}
	cmd.Stderr = &streamWriter{shaper: s.output, stderr: true}

	logger.Debugf("starting %s: %s %v", lib.ShortID(runID), command, args)
	err = cmd.Start()
	if sysProcAttr.File != nil {
		_ = sysProcAttr.File.Close()
	}
	if err != nil {
		_ = cleanupTree(runID)
		return fmt.Errorf("start %s: %w", command, err)
	}

	pe := &processEntry{
		id:      runID,
		command: lib.Command{Command: command, Args: append([]string(nil), args...), Dir: dir},
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		start:   time.Now(),
		done:    make(chan struct{}),
	}
	s.current = pe

	go pe.wait()

	return nil
}

func (pe *processEntry) wait() {
	err := pe.cmd.Wait()

	exit := exitSignalOf(pe.cmd, err)
	exit.EndTime = time.Now()
	pe.exit = exit
	pe.exited.Store(true)
	close(pe.done)

	logger.Debugf("process %s (pid %d) ended with %s after %s",
		lib.ShortID(pe.id), pe.pid, exit, exit.EndTime.Sub(pe.start).Round(time.Millisecond))

	if err := cleanupTree(pe.id); err != nil {
		logger.Debugf("cleanup for %s: %v", lib.ShortID(pe.id), err)
	}
}

func exitSignalOf(cmd *exec.Cmd, waitErr error) lib.ExitSignal {
	state := cmd.ProcessState
	if state == nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return lib.AlreadyEnded()
		}
		state = exitErr.ProcessState
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return lib.ExitSignal{Signal: signalName(ws.Signal())}
	}

	code := state.ExitCode()
	return lib.ExitSignal{ExitCode: &code}
}

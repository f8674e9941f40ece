package lib

import (
	"fmt"
	"time"
)

// RunState is the coordinator's view of the save/spawn/stop cycle.
type RunState int

const (
	RunStateStopped RunState = iota
	RunStateRunning
	RunStateStopping
	RunStateSaving
)

func (s RunState) String() string {
	switch s {
	case RunStateStopped:
		return "stopped"
	case RunStateRunning:
		return "running"
	case RunStateStopping:
		return "stopping"
	case RunStateSaving:
		return "saving"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Command captures command metadata used to start a process.
type Command struct {
	Command string
	Args    []string
	Dir     string
}

// SignalLost is reported by WaitForEnd when there was nothing left to wait for.
const SignalLost = "SIGLOST"

// ExitSignal describes how a supervised process ended. Exactly one of
// ExitCode and Signal is set.
type ExitSignal struct {
	ExitCode *int
	Signal   string
	EndTime  time.Time
}

// AlreadyEnded is the sentinel returned when no process is live.
func AlreadyEnded() ExitSignal {
	return ExitSignal{Signal: SignalLost}
}

// IsAlreadyEnded reports whether s is the AlreadyEnded sentinel.
func (s ExitSignal) IsAlreadyEnded() bool {
	return s.ExitCode == nil && s.Signal == SignalLost
}

func (s ExitSignal) String() string {
	if s.ExitCode != nil {
		return fmt.Sprintf("exit code %d", *s.ExitCode)
	}
	return "signal " + s.Signal
}

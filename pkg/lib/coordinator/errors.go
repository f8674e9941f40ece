package coordinator

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
)

// ErrInvariant is wrapped by every InvariantError.
var ErrInvariant = errors.New("run state invariant violated")

// InvariantError reports a RunState that only a bug could have produced.
type InvariantError struct {
	Op   string
	Want lib.RunState
	Got  lib.RunState
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: expected state %s, found %s", e.Op, e.Want, e.Got)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

func violation(op string, want, got lib.RunState) error {
	return goerrors.Wrap(&InvariantError{Op: op, Want: want, Got: got}, 1)
}

// FatalHandler receives invariant violations. The default logs the stack
// and panics.
type FatalHandler func(err error)

func panicOnViolation(err error) {
	var stack string
	var goErr *goerrors.Error
	if errors.As(err, &goErr) {
		stack = goErr.ErrorStack()
	}
	logger.WithError(err).Error("run state corrupted\n" + stack)
	panic(err)
}

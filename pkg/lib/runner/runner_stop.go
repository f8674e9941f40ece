package runner

import (
	"context"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
)

// Stop forcibly terminates the live process together with everything it
// spawned. It returns once the operating system accepted the request, which
// may be before the process is reaped; use WaitForEnd to observe the exit.
// With nothing live, Stop returns nil immediately.
func (s *Supervisor) Stop(ctx context.Context) error {
	pe := s.live()
	if pe == nil {
		return nil
	}

	logger.Debugf("killing process tree of %s (pid %d)", lib.ShortID(pe.id), pe.pid)
	return killTree(ctx, pe.id, pe.pid)
}

// Dispose requests a Stop and returns without waiting for it. Any failure
// is logged and otherwise dropped; it is meant for teardown paths that
// must not block.
func (s *Supervisor) Dispose() {
	go func() {
		if err := s.Stop(context.Background()); err != nil {
			logger.WithError(err).Warn("dispose: stop failed")
		}
	}()
}

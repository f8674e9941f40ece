package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/debounce"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/filesystem"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

var logger = logging.For("coordinator")

// Process is the part of runner.Supervisor the Coordinator drives.
type Process interface {
	Start(command string, args []string, clearOutput bool, dir string) error
	Stop(ctx context.Context) error
	WaitForEnd() <-chan lib.ExitSignal
	Dispose()
	SetMaxLines(n int)
	SetPrintTimestamp(enabled bool)
}

// Coordinator is the save-debounce-spawn state machine of one workspace.
// Create it with New; the zero value is not usable.
type Coordinator struct {
	mu      sync.Mutex
	state   lib.RunState
	cfg     config.Config
	active  Document
	target  string
	runGen  uint64
	closed  bool
	windows bool

	process Process
	slot    debounce.Slot[struct{}]
	delay   *debounce.Delay

	fatal     FatalHandler
	listeners []func(lib.RunState)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFatalHandler replaces the handler for invariant violations.
func WithFatalHandler(fn FatalHandler) Option {
	return func(c *Coordinator) {
		c.fatal = fn
	}
}

// WithStateListener registers fn to be called on every state change. It is
// called with the Coordinator's lock held and must not call back into it.
func WithStateListener(fn func(lib.RunState)) Option {
	return func(c *Coordinator) {
		c.listeners = append(c.listeners, fn)
	}
}

// WithWindows overrides host detection for the launch path.
func WithWindows(windows bool) Option {
	return func(c *Coordinator) {
		c.windows = windows
	}
}

// New creates a Coordinator in the Stopped state driving process.
func New(process Process, cfg config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   lib.RunStateStopped,
		process: process,
		delay:   debounce.NewDelay(cfg.Debounce),
		windows: config.IsWindows(),
		fatal:   panicOnViolation,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ApplyConfig(cfg)
	return c
}

// State returns the current RunState.
func (c *Coordinator) State() lib.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the resolved command for the active document, or "".
func (c *Coordinator) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// ApplyConfig handles a configuration change. Output shaping applies to the
// next chunk, the debounce delay to the next edit.
func (c *Coordinator) ApplyConfig(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg = cfg
	c.process.SetMaxLines(cfg.MaxLines)
	c.process.SetPrintTimestamp(cfg.PrintTimestamp)
	c.delay.Set(cfg.Debounce)
	c.resolveTargetLocked()
}

// SetActiveDocument handles an active-document change. A nil doc clears
// the target.
func (c *Coordinator) SetActiveDocument(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = doc
	c.resolveTargetLocked()
}

// RefreshTarget repeats the target lookup for the active document, for
// when c++live scripts appear or disappear.
func (c *Coordinator) RefreshTarget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveTargetLocked()
}

func (c *Coordinator) resolveTargetLocked() {
	target := ""
	if c.active != nil && !c.active.IsUntitled() && c.active.Path() != "" {
		if found, ok := filesystem.FindNear(c.active.Path(), config.ProcessName()); ok {
			target = found
		}
	}
	if target != c.target {
		if target == "" {
			logger.Infof("%s not found", config.ProcessName())
		} else {
			logger.Infof("using %s", target)
		}
	}
	c.target = target
}

// acceptsLocked reports whether an edit of doc may drive the state machine.
func (c *Coordinator) acceptsLocked(doc Document) bool {
	return c.target != "" &&
		doc != nil &&
		doc.LanguageID() == WatchedLanguage &&
		doc.IsDirty() &&
		!doc.IsUntitled() &&
		doc.Path() != "" &&
		c.cfg.Enabled
}

func (c *Coordinator) setStateLocked(s lib.RunState) {
	if c.state == s {
		return
	}
	logger.Debugf("state %s -> %s", c.state, s)
	c.state = s
	for _, fn := range c.listeners {
		fn(s)
	}
}

// OnChange handles an edit notification for doc.
//
// It returns the Pending of the debounced run it scheduled, or nil when the
// edit was ignored. A Pending superseded by a later edit never settles.
// When a process is running, OnChange blocks until it has been killed.
func (c *Coordinator) OnChange(ctx context.Context, doc Document) *debounce.Pending[struct{}] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.acceptsLocked(doc) {
		return nil
	}

	switch c.state {
	case lib.RunStateStopped:
	case lib.RunStateRunning:
		c.setStateLocked(lib.RunStateStopping)
		c.mu.Unlock()
		c.stopRunning(ctx)
		c.mu.Lock()
		if c.state != lib.RunStateStopping {
			c.fatal(violation("stop", lib.RunStateStopping, c.state))
			return nil
		}
		c.setStateLocked(lib.RunStateStopped)
	case lib.RunStateStopping:
		logger.Debug("edit ignored, stop in progress")
		return nil
	case lib.RunStateSaving:
		logger.Debug("edit ignored, save in progress")
		return nil
	}

	return c.scheduleLocked(doc)
}

// stopRunning kills the current process and waits for its exit. When the
// kill request itself fails the exit is not awaited.
func (c *Coordinator) stopRunning(ctx context.Context) {
	end := c.process.WaitForEnd()
	if err := c.process.Stop(ctx); err != nil {
		logger.WithError(err).Warn("stopping the previous run failed")
		return
	}
	select {
	case sig := <-end:
		logger.Debugf("previous run ended: %s", sig)
	case <-ctx.Done():
		logger.WithError(ctx.Err()).Warn("gave up waiting for the previous run")
	}
}

func (c *Coordinator) scheduleLocked(doc Document) *debounce.Pending[struct{}] {
	return c.slot.Schedule(func(ctx context.Context) (struct{}, error) {
		err := c.onDebounced(ctx, doc)
		if err != nil {
			c.report(err)
		}
		return struct{}{}, err
	}, c.delay.Get())
}

func (c *Coordinator) report(err error) {
	if errors.Is(err, ErrInvariant) {
		c.fatal(err)
		return
	}
	logger.WithError(err).Warn("debounced run failed")
}

// onDebounced saves doc if it is still dirty, or starts the run if it is
// clean.
func (c *Coordinator) onDebounced(ctx context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Superseded by a later edit after this call had already fired, or
	// the Coordinator was closed meanwhile.
	if ctx.Err() != nil || c.closed {
		return nil
	}

	if doc.IsDirty() {
		if c.state != lib.RunStateStopped {
			return violation("debounced save", lib.RunStateStopped, c.state)
		}

		c.setStateLocked(lib.RunStateSaving)
		c.mu.Unlock()
		saveErr := doc.Save(ctx)
		c.mu.Lock()

		if c.state != lib.RunStateSaving {
			return violation("save", lib.RunStateSaving, c.state)
		}
		c.setStateLocked(lib.RunStateStopped)

		if saveErr != nil {
			return saveErr
		}
		if doc.IsDirty() {
			// Edited again while saving; that save or edit comes back here.
			return nil
		}
	}

	c.startLocked(doc)
	return nil
}

func (c *Coordinator) startLocked(doc Document) {
	if c.closed {
		return
	}
	if c.state != lib.RunStateStopped {
		logger.Debugf("not starting, state is %s", c.state)
		return
	}
	if c.target == "" {
		return
	}

	command, args, dir := LaunchCommand(c.target, doc.Path(), c.cfg, c.windows)
	if err := c.process.Start(command, args, true, dir); err != nil {
		logger.WithError(err).Errorf("cannot start %s", c.target)
		return
	}

	c.runGen++
	gen := c.runGen
	end := c.process.WaitForEnd()
	c.setStateLocked(lib.RunStateRunning)

	go c.awaitExit(gen, end)
}

// awaitExit returns to Stopped when run gen ends on its own.
func (c *Coordinator) awaitExit(gen uint64, end <-chan lib.ExitSignal) {
	sig := <-end

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runGen != gen || c.state != lib.RunStateRunning {
		return
	}
	logger.Infof("run finished with %s", sig)
	c.setStateLocked(lib.RunStateStopped)
}

// LaunchCommand picks how to invoke target for file. On Windows with
// jobify enabled the target runs inside a job object via PowerShell, so
// killing the job takes every descendant with it.
func LaunchCommand(target, file string, cfg config.Config, windows bool) (string, []string, string) {
	dir := filepath.Dir(target)
	if windows && cfg.Jobify {
		return "PowerShell.exe", []string{
			"-ExecutionPolicy", "Bypass",
			"-File", cfg.JobifyScript,
			target,
			file,
		}, dir
	}
	return target, []string{file}, dir
}

// Close cancels a pending debounced run and disposes of the process
// without waiting. No run starts afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.slot.Cancel()
	c.process.Dispose()
}

// Shutdown is Close for teardown paths that must not leave anything behind:
// it kills the live run and waits, bounded by ctx, until it has exited.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.slot.Cancel()

	end := c.process.WaitForEnd()
	if err := c.process.Stop(ctx); err != nil {
		return fmt.Errorf("stop run: %w", err)
	}
	select {
	case sig := <-end:
		if !sig.IsAlreadyEnded() {
			logger.Debugf("run ended on shutdown: %s", sig)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for run to end: %w", ctx.Err())
	}
}

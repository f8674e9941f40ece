package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
)

type fakeDoc struct {
	mu       sync.Mutex
	path     string
	lang     string
	dirty    bool
	untitled bool
	saves    int
	saveErr  error
	// saveGate, when set, blocks Save until it is closed.
	saveGate chan struct{}
	// stayDirty keeps the document dirty after a successful save.
	stayDirty bool
}

func newDoc(path string) *fakeDoc {
	return &fakeDoc{path: path, lang: WatchedLanguage, dirty: true}
}

func (d *fakeDoc) Path() string       { return d.path }
func (d *fakeDoc) LanguageID() string { return d.lang }
func (d *fakeDoc) IsUntitled() bool   { return d.untitled }

func (d *fakeDoc) IsDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

func (d *fakeDoc) setDirty(v bool) {
	d.mu.Lock()
	d.dirty = v
	d.mu.Unlock()
}

func (d *fakeDoc) Save(ctx context.Context) error {
	if d.saveGate != nil {
		<-d.saveGate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	if d.saveErr != nil {
		return d.saveErr
	}
	if !d.stayDirty {
		d.dirty = false
	}
	return nil
}

func (d *fakeDoc) saveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

type startCall struct {
	command string
	args    []string
	clear   bool
	dir     string
}

type fakeProcess struct {
	mu        sync.Mutex
	starts    []startCall
	live      bool
	exited    chan struct{}
	stops     int
	stopErr   error
	stopGate  chan struct{}
	startErr  error
	disposed  bool
	maxLines  int
	timestamp bool
}

func (p *fakeProcess) Start(command string, args []string, clearOutput bool, dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.starts = append(p.starts, startCall{command, args, clearOutput, dir})
	p.live = true
	p.exited = make(chan struct{})
	return nil
}

func (p *fakeProcess) Stop(ctx context.Context) error {
	if p.stopGate != nil {
		<-p.stopGate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	if p.stopErr != nil {
		return p.stopErr
	}
	p.endLocked()
	return nil
}

// finish simulates the process exiting on its own.
func (p *fakeProcess) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}

func (p *fakeProcess) endLocked() {
	if p.live {
		p.live = false
		close(p.exited)
	}
}

func (p *fakeProcess) WaitForEnd() <-chan lib.ExitSignal {
	ch := make(chan lib.ExitSignal, 1)
	p.mu.Lock()
	live, exited := p.live, p.exited
	p.mu.Unlock()
	if !live {
		ch <- lib.AlreadyEnded()
		return ch
	}
	go func() {
		<-exited
		code := 0
		ch <- lib.ExitSignal{ExitCode: &code}
	}()
	return ch
}

func (p *fakeProcess) Dispose() {
	p.mu.Lock()
	p.disposed = true
	p.mu.Unlock()
}

func (p *fakeProcess) SetMaxLines(n int) {
	p.mu.Lock()
	p.maxLines = n
	p.mu.Unlock()
}

func (p *fakeProcess) SetPrintTimestamp(enabled bool) {
	p.mu.Lock()
	p.timestamp = enabled
	p.mu.Unlock()
}

func (p *fakeProcess) startCalls() []startCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]startCall(nil), p.starts...)
}

func (p *fakeProcess) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// stateRecorder collects every transition reported to a listener.
type stateRecorder struct {
	mu     sync.Mutex
	states []lib.RunState
}

func (r *stateRecorder) record(s lib.RunState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []lib.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lib.RunState(nil), r.states...)
}

// workspace creates a directory holding a c++live script and returns it.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, config.ProcessName())
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"built $1\"\n"), 0o755))
	return dir
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Debounce = 20 * time.Millisecond
	return cfg
}

func waitSettled(t *testing.T, p interface{ Done() <-chan struct{} }) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("debounced run did not settle")
	}
}

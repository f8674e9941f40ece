// Package workspace connects a directory on disk to a Coordinator. It plays
// the editor's part: file writes become edit notifications, the file being
// written becomes the active document, and settings edits become
// configuration changes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/config"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/coordinator"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/debounce"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

var logger = logging.For("workspace")

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("workspace host closed")

// ShutdownTimeout bounds how long Close waits for the live run to die.
const ShutdownTimeout = 10 * time.Second

// SkippedDirs are never watched.
var SkippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"build":        true,
	"out":          true,
	"bin":          true,
	"obj":          true,
}

// Driver is the part of coordinator.Coordinator the host calls.
type Driver interface {
	OnChange(ctx context.Context, doc coordinator.Document) *debounce.Pending[struct{}]
	SetActiveDocument(doc coordinator.Document)
	RefreshTarget()
	ApplyConfig(cfg config.Config)
	Shutdown(ctx context.Context) error
}

// Host watches one workspace directory.
type Host struct {
	root     string
	settings string
	driver   Driver
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	docs    map[string]*FileDocument
	active  string
	langs   *Languages
	watched map[string]bool
	closed  bool

	handlers sync.WaitGroup
	closeCh  chan struct{}
}

// NewHost watches root recursively and settingsPath, and applies the
// initial configuration read from settingsPath to driver.
func NewHost(root, settingsPath string, driver Driver) (*Host, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absSettings, err := filepath.Abs(settingsPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(absSettings)
	if err != nil {
		logger.WithError(err).Warn("using default settings")
	}
	langs, err := NewLanguages(cfg.FilePatterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	h := &Host{
		root:     absRoot,
		settings: absSettings,
		driver:   driver,
		watcher:  fsw,
		docs:     make(map[string]*FileDocument),
		langs:    langs,
		watched:  make(map[string]bool),
		closeCh:  make(chan struct{}),
	}

	if err := h.watchRecursive(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	// The settings directory may not exist yet or may live outside root.
	if dir := filepath.Dir(absSettings); !h.isWatched(dir) {
		if err := h.watch(dir); err != nil {
			logger.WithError(err).Debugf("not watching %s", dir)
		}
	}

	driver.ApplyConfig(cfg)
	return h, nil
}

// Root returns the absolute workspace directory.
func (h *Host) Root() string {
	return h.root
}

func (h *Host) isWatched(dir string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.watched[dir]
}

func (h *Host) watch(dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watched[dir] {
		return nil
	}
	if err := h.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	h.watched[dir] = true
	return nil
}

func (h *Host) watchRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && SkippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := h.watch(p); err != nil {
			logger.WithError(err).Warn("directory skipped")
		}
		return nil
	})
}

// Run dispatches file events until ctx is done or the host is closed.
// Edit notifications run on their own goroutines with ctx.
func (h *Host) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closeCh:
			return ErrClosed
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return ErrClosed
			}
			h.handle(ctx, ev)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return ErrClosed
			}
			logger.WithError(err).Warn("watcher error")
		}
	}
}

func (h *Host) handle(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	logger.Debugf("event %s", ev)

	if name == h.settings {
		if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			h.reloadSettings()
		}
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if !SkippedDirs[filepath.Base(name)] {
				if err := h.watchRecursive(name); err != nil {
					logger.WithError(err).Warn("new directory not watched")
				}
			}
			h.driver.RefreshTarget()
			return
		}
	}

	if filepath.Base(name) == config.ProcessName() {
		if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			h.driver.RefreshTarget()
		}
		return
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		h.forget(name)
		return
	}

	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
		h.edited(ctx, name)
	}
}

// edited reports a write of path: activation first, then the edit itself.
func (h *Host) edited(ctx context.Context, path string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	lang := h.langs.Detect(path)
	if lang == "" {
		h.mu.Unlock()
		return
	}
	doc, ok := h.docs[path]
	if !ok {
		doc = NewFileDocument(path, lang)
		h.docs[path] = doc
	}
	activate := h.active != path
	h.active = path
	h.handlers.Add(1)
	h.mu.Unlock()

	if activate {
		h.driver.SetActiveDocument(doc)
	}

	go func() {
		defer h.handlers.Done()
		h.driver.OnChange(ctx, doc)
	}()
}

func (h *Host) forget(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.docs, path)
	delete(h.watched, path)
}

func (h *Host) reloadSettings() {
	cfg, err := config.Load(h.settings)
	if err != nil {
		logger.WithError(err).Warn("settings not reloaded")
		return
	}
	langs, err := NewLanguages(cfg.FilePatterns)
	if err != nil {
		logger.WithError(err).Warn("settings not reloaded")
		return
	}

	h.mu.Lock()
	h.langs = langs
	for path, doc := range h.docs {
		if lang := langs.Detect(path); lang != doc.language {
			delete(h.docs, path)
		}
	}
	h.mu.Unlock()

	logger.Info("settings reloaded")
	h.driver.ApplyConfig(cfg)
}

// Document returns the tracked document for path, if any.
func (h *Host) Document(path string) (*FileDocument, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, ok := h.docs[path]
	return doc, ok
}

// Close stops watching, waits for in-flight edit notifications and shuts
// the driver down, killing the live run. It is safe to call more than once.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.closeCh)
	h.mu.Unlock()

	var result *multierror.Error
	if err := h.watcher.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close watcher: %w", err))
	}
	h.handlers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := h.driver.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shut down: %w", err))
	}
	return result.ErrorOrNil()
}

package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/coordinator"
)

// Languages maps file names to language ids.
type Languages struct {
	watched []glob.Glob
}

// NewLanguages compiles patterns matched against base names. Matching files
// get the watched language id.
func NewLanguages(patterns []string) (*Languages, error) {
	l := &Languages{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("file pattern %q: %w", p, err)
		}
		l.watched = append(l.watched, g)
	}
	return l, nil
}

// Detect returns the language id of path, or "" for anything else.
func (l *Languages) Detect(path string) string {
	base := filepath.Base(path)
	for _, g := range l.watched {
		if g.Match(base) {
			return coordinator.WatchedLanguage
		}
	}
	return ""
}

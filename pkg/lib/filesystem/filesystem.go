// Package filesystem locates files relative to an edited source file.
package filesystem

import (
	"os"
	"path/filepath"
)

// FindNear looks for name in the directory of path and then in each parent
// directory up to the filesystem root. It returns the first match and true,
// or "" and false.
func FindNear(path, name string) (string, bool) {
	dir := filepath.Dir(path)
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

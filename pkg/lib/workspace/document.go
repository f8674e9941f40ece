package workspace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileDocument is a source file on disk seen through the editor's eyes: it
// is dirty while its content differs from what was last committed by Save.
// A document the host has never saved starts out dirty.
type FileDocument struct {
	path     string
	language string

	mu        sync.Mutex
	committed []byte
}

// NewFileDocument returns a dirty document for path.
func NewFileDocument(path, language string) *FileDocument {
	return &FileDocument{path: path, language: language}
}

func (d *FileDocument) Path() string       { return d.path }
func (d *FileDocument) LanguageID() string { return d.language }

// IsUntitled is always false: a FileDocument always has a backing file.
func (d *FileDocument) IsUntitled() bool { return false }

// IsDirty hashes the file and compares it with the committed hash. A file
// that cannot be read counts as clean.
func (d *FileDocument) IsDirty() bool {
	sum, err := hashFile(d.path)
	if err != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !bytes.Equal(sum, d.committed)
}

// Save flushes the file to stable storage and commits its current content.
func (d *FileDocument) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(d.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", d.path, err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.committed = h.Sum(nil)
	d.mu.Unlock()
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

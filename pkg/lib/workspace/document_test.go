package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/coordinator"
)

func TestFileDocument_DirtyUntilSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	require.NoError(t, os.WriteFile(path, []byte("int main() {}\n"), 0o644))

	doc := NewFileDocument(path, coordinator.WatchedLanguage)
	assert.Equal(t, path, doc.Path())
	assert.Equal(t, coordinator.WatchedLanguage, doc.LanguageID())
	assert.False(t, doc.IsUntitled())
	assert.True(t, doc.IsDirty())

	require.NoError(t, doc.Save(context.Background()))
	assert.False(t, doc.IsDirty())

	require.NoError(t, os.WriteFile(path, []byte("int main() { return 1; }\n"), 0o644))
	assert.True(t, doc.IsDirty())

	// Same bytes as committed again.
	require.NoError(t, os.WriteFile(path, []byte("int main() {}\n"), 0o644))
	assert.False(t, doc.IsDirty())
}

func TestFileDocument_MissingFile(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "gone.cpp"), coordinator.WatchedLanguage)
	assert.False(t, doc.IsDirty())
	assert.Error(t, doc.Save(context.Background()))
}

func TestFileDocument_SaveHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := NewFileDocument(path, coordinator.WatchedLanguage)
	assert.ErrorIs(t, doc.Save(ctx), context.Canceled)
	assert.True(t, doc.IsDirty())
}

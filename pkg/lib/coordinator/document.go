package coordinator

import "context"

// WatchedLanguage is the language id whose edits trigger runs.
const WatchedLanguage = "cpp"

// Document is the editor buffer an edit notification refers to.
type Document interface {
	// Path is the file backing the document; empty if there is none.
	Path() string
	LanguageID() string
	IsDirty() bool
	// IsUntitled reports a buffer that was never saved to disk.
	IsUntitled() bool
	Save(ctx context.Context) error
}

package output_storage

// Write implements io.Writer for OutputStorage. It stores a copy of p, since
// callers may reuse p after Write returns.
//
// A nil receiver swallows the write; empty input is a no-op.
func (s *OutputStorage) Write(p []byte) (int, error) {
	if s == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.Append(append([]byte(nil), p...))

	return len(p), nil
}

package runner

import (
	"math"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// outputShaper applies the line cap and timestamping to chunks from both
// standard streams. One mutex covers the counters and the sink write, so
// interleaved stdout and stderr chunks are accounted for one at a time.
type outputShaper struct {
	mu sync.Mutex

	sink        Sink
	maxLines    int
	linesOut    int
	timestamp   bool
	errorMarker string
	atLineStart bool

	now func() time.Time
}

func newOutputShaper(sink Sink) *outputShaper {
	return &outputShaper{sink: sink, atLineStart: true, now: time.Now}
}

func (o *outputShaper) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.linesOut = 0
	o.atLineStart = true
	o.sink.Clear()
}

func (o *outputShaper) write(data []byte, stderr bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	text := string(data)
	if o.maxLines != 0 {
		left := o.maxLines - o.linesOut
		if left <= 0 {
			return
		}
		var n int
		text, n = cutAfterNthNewline(text, left)
		o.linesOut += n
	} else {
		o.linesOut += strings.Count(text, "\n")
	}

	if o.timestamp {
		text = o.stamp(text)
	}
	if stderr && o.errorMarker != "" && text != "" {
		text = o.errorMarker + text
	}
	if text == "" {
		return
	}

	if _, err := o.sink.Write([]byte(text)); err != nil {
		logger.WithError(err).Debug("output sink rejected a chunk")
	}
}

// stamp strips carriage returns and prefixes every line with the local time
// at which its first byte arrived.
func (o *outputShaper) stamp(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	if text == "" {
		return ""
	}

	prefix := o.now().Format(timestampLayout) + " "
	var b strings.Builder
	b.Grow(len(text) + len(prefix)*(strings.Count(text, "\n")+1))
	for text != "" {
		if o.atLineStart {
			b.WriteString(prefix)
			o.atLineStart = false
		}
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:i+1])
		text = text[i+1:]
		o.atLineStart = true
	}
	return b.String()
}

// cutAfterNthNewline returns text up to and including its nth newline, and
// how many newlines that prefix holds. Text with fewer newlines is returned
// whole.
func cutAfterNthNewline(text string, n int) (string, int) {
	end := 0
	found := 0
	for found < n {
		i := strings.IndexByte(text[end:], '\n')
		if i < 0 {
			return text, found
		}
		end += i + 1
		found++
	}
	return text[:end], found
}

type streamWriter struct {
	shaper *outputShaper
	stderr bool
}

// Write never fails: output past the line cap is swallowed rather than
// surfaced to the copying goroutine, which would stop reading the pipe.
func (w *streamWriter) Write(p []byte) (int, error) {
	w.shaper.write(p, w.stderr)
	return len(p), nil
}

// SetMaxLines caps how many lines reach the sink per run; 0 disables the cap.
// The sign is ignored.
func (s *Supervisor) SetMaxLines(n int) {
	if n < 0 {
		n = -n
	}
	if n < 0 {
		// math.MinInt has no positive counterpart.
		n = math.MaxInt
	}
	s.output.mu.Lock()
	s.output.maxLines = n
	s.output.mu.Unlock()
}

// SetPrintTimestamp turns per-line timestamps on or off.
func (s *Supervisor) SetPrintTimestamp(enabled bool) {
	s.output.mu.Lock()
	s.output.timestamp = enabled
	s.output.mu.Unlock()
}

// SetErrorMarker sets a prefix written in front of every stderr chunk.
func (s *Supervisor) SetErrorMarker(marker string) {
	s.output.mu.Lock()
	s.output.errorMarker = marker
	s.output.mu.Unlock()
}

// LinesEmitted returns how many newlines reached the sink since the last
// clearing Start.
func (s *Supervisor) LinesEmitted() int {
	s.output.mu.Lock()
	defer s.output.mu.Unlock()
	return s.output.linesOut
}

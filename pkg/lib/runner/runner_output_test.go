package runner

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

type bufferSink struct {
	mu     sync.Mutex
	b      strings.Builder
	clears int
}

func (s *bufferSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *bufferSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.Reset()
	s.clears++
}

func (s *bufferSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestShaper_LineCapTruncatesAndDiscards(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(5)

	chunk := "1\n2\n3\n4\n5\n6\n7\n8\n"
	s.output.write([]byte(chunk), false)

	if got := sink.String(); got != "1\n2\n3\n4\n5\n" {
		t.Fatalf("expected first five lines, got %q", got)
	}
	if s.LinesEmitted() != 5 {
		t.Fatalf("expected 5 lines emitted, got %d", s.LinesEmitted())
	}

	s.output.write([]byte("9\n"), true)
	s.output.write([]byte("no newline"), false)
	if got := sink.String(); got != "1\n2\n3\n4\n5\n" {
		t.Fatalf("expected later chunks to be discarded, got %q", got)
	}
}

func TestShaper_PartialLineWithinBudgetIsKept(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(2)

	s.output.write([]byte("a\npartial"), false)
	s.output.write([]byte(" line\nb\nc\n"), false)

	if got := sink.String(); got != "a\npartial line\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestShaper_ZeroCapIsUnlimited(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(0)

	chunk := strings.Repeat("line\n", 5000)
	s.output.write([]byte(chunk), false)

	if got := sink.String(); got != chunk {
		t.Fatalf("expected all %d bytes, got %d", len(chunk), len(got))
	}
	if s.LinesEmitted() != 5000 {
		t.Fatalf("expected 5000 lines counted, got %d", s.LinesEmitted())
	}
}

func TestShaper_NegativeCapUsesMagnitude(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(-1)

	s.output.write([]byte("x\ny\n"), false)
	if got := sink.String(); got != "x\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestShaper_MinIntCapStillForwards(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(math.MinInt)

	s.output.write([]byte("x\ny\n"), false)
	if got := sink.String(); got != "x\ny\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestShaper_TimestampsEveryLine(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetPrintTimestamp(true)
	fixed := time.Date(2024, 3, 9, 7, 5, 2, 45_000_000, time.Local)
	s.output.now = func() time.Time { return fixed }

	s.output.write([]byte("one\r\ntwo\nthr"), false)
	s.output.write([]byte("ee\n"), false)

	ts := "2024-03-09 07:05:02.045 "
	want := ts + "one\n" + ts + "two\n" + ts + "three\n"
	if got := sink.String(); got != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", got, want)
	}
}

func TestShaper_ErrorMarker(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetErrorMarker("! ")

	s.output.write([]byte("out\n"), false)
	s.output.write([]byte("err\n"), true)

	if got := sink.String(); got != "out\n! err\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestShaper_ResetRestoresBudget(t *testing.T) {
	sink := &bufferSink{}
	s := NewSupervisor(sink)
	s.SetMaxLines(1)

	s.output.write([]byte("a\nb\n"), false)
	s.output.reset()
	s.output.write([]byte("c\nd\n"), false)

	if got := sink.String(); got != "c\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if sink.clears != 1 {
		t.Fatalf("expected one clear, got %d", sink.clears)
	}
}

func TestCutAfterNthNewline(t *testing.T) {
	cases := []struct {
		in    string
		n     int
		want  string
		lines int
	}{
		{"a\nb\nc\n", 2, "a\nb\n", 2},
		{"a\nb", 5, "a\nb", 1},
		{"", 3, "", 0},
		{"abc", 1, "abc", 0},
		{"\n\n", 1, "\n", 1},
	}
	for _, c := range cases {
		got, n := cutAfterNthNewline(c.in, c.n)
		if got != c.want || n != c.lines {
			t.Errorf("cutAfterNthNewline(%q, %d) = %q, %d; want %q, %d", c.in, c.n, got, n, c.want, c.lines)
		}
	}
}

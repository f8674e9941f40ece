package output_storage

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// contents concatenates the current generation.
func contents(s *OutputStorage) string {
	var b strings.Builder
	for cur := s.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		b.Write(cur.data)
	}
	return b.String()
}

func TestNewOutputStorage_Empty(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	if got := contents(s); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	ch := s.Subscribe(context.Background(), 1)
	assertNoRecv(t, ch, 30*time.Millisecond)
}

func TestAppend_KeepsOrder(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()
	for _, item := range []string{"a", "b", "c"} {
		s.Append([]byte(item))
	}

	if got := contents(s); got != "abc" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestNilReceiverSafety(t *testing.T) {
	var s *OutputStorage

	s.Append([]byte("x"))
	s.Clear()
	s.Stop()
	if n, err := s.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("nil Write: n=%d err=%v", n, err)
	}
}

func TestWrite_CopiesInput(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	data := []byte("abc")
	if _, err := s.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data[0] = 'z'
	if got := contents(s); got != "abc" {
		t.Fatalf("expected storage to keep its own copy, got %q", got)
	}

	if n, err := s.Write(nil); n != 0 || err != nil {
		t.Fatalf("empty Write: n=%d err=%v", n, err)
	}
}

func TestClear_StartsNewGeneration(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	s.Append([]byte("old\n"))
	s.Clear()
	if got := contents(s); got != "" {
		t.Fatalf("expected empty output after Clear, got %q", got)
	}

	s.Append([]byte("new\n"))
	if got := contents(s); got != "new\n" {
		t.Fatalf("expected only new output, got %q", got)
	}
}

func TestClear_FollowerKeepsReceiving(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	s.Append([]byte("before"))
	ch := s.Subscribe(context.Background(), 4)
	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || string(v) != "before" {
		t.Fatalf("expected 'before', ok=%v v=%q", ok, string(v))
	}

	s.Clear()
	s.Append([]byte("after"))
	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || string(v) != "after" {
		t.Fatalf("expected 'after', ok=%v v=%q", ok, string(v))
	}

	late := s.Subscribe(context.Background(), 4)
	if v, ok := recvWithTimeout(t, late, 200*time.Millisecond); !ok || string(v) != "after" {
		t.Fatalf("late subscriber should start at the clear, ok=%v v=%q", ok, string(v))
	}
}

func TestSubscribe_DeliversExistingItemsInOrder(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()
	s.Append([]byte("a"))
	s.Append([]byte("b"))
	s.Append([]byte("c"))

	ch := s.Subscribe(context.Background(), 3)

	for _, want := range []string{"a", "b", "c"} {
		if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || string(v) != want {
			t.Fatalf("expected %q, ok=%v v=%q", want, ok, string(v))
		}
	}

	// No further messages should arrive without new appends
	assertNoRecv(t, ch, 50*time.Millisecond)
}

func TestSubscribe_ClosesOnContextCancel(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()
	s.Append([]byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, 1)
	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || string(v) != "x" {
		t.Fatalf("expected initial item 'x', ok=%v v=%q", ok, string(v))
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to be closed")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("subscription channel did not close after cancel")
	}

	// Appending after the subscriber left must not block.
	s.Append([]byte("y"))
}

func TestSubscribe_AfterStopReplaysAndCloses(t *testing.T) {
	s := RunNewOutputStorage()
	s.Append([]byte("1"))
	s.Append([]byte("2"))
	s.Stop()
	s.Append([]byte("dropped"))

	// The broadcaster closes asynchronously; give it a moment.
	time.Sleep(20 * time.Millisecond)
	ch := s.Subscribe(context.Background(), 1)
	if got := recvAllString(t, ch); got != "12" {
		t.Fatalf("expected replay '12', got %q", got)
	}
}

func TestFollow_ReportsClears(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	s.Append([]byte("one"))
	ch := s.Follow(context.Background(), 8)
	s.Clear()
	s.Append([]byte("two"))
	s.Stop()

	var got []string
	for c := range ch {
		if c.Reset {
			got = append(got, "<reset>")
			continue
		}
		got = append(got, string(c.Data))
	}
	want := fmt.Sprint([]string{"one", "<reset>", "two"})
	if fmt.Sprint(got) != want {
		t.Fatalf("expected %s, got %v", want, got)
	}
}

func recvAllString(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	var out []byte
	for b := range ch {
		out = append(out, b...)
	}
	return string(out)
}

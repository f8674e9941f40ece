// Package output_storage keeps the shaped output of supervised processes.
//
// The storage is an append-only singly linked list. Clear does not unlink
// anything: it appends a reset node and moves the head past it, so readers
// that are already following the list keep receiving new output while fresh
// readers only see what came after the reset.
package output_storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

// node represents an element in the singly linked list.
type node struct {
	data  []byte
	reset bool
	next  atomic.Pointer[node]
}

var logger = logging.For("output_storage")

// OutputStorage is safe for concurrent writers and readers. Writers are
// serialized by a mutex; readers walk the list through atomic pointers and
// never block writers.
type OutputStorage struct {
	head atomic.Pointer[node] // sentinel of the current generation

	mu      sync.Mutex
	tail    *node
	stopped bool

	broadcaster *Broadcaster[struct{}]
}

// RunNewOutputStorage creates a new, empty OutputStorage.
func RunNewOutputStorage() *OutputStorage {
	sentinel := &node{reset: true}
	s := &OutputStorage{
		tail:        sentinel,
		broadcaster: RunNewBroadcaster[struct{}](),
	}
	s.head.Store(sentinel)

	return s
}

// Stop closes every live subscription. Later appends are dropped.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.broadcaster.Stop()
}

// Append adds data to the end of the list. The slice is stored as-is.
func (s *OutputStorage) Append(data []byte) {
	if s == nil {
		return
	}

	s.push(&node{data: data})
}

// Clear starts a new generation: new subscribers no longer see anything
// appended before this call.
func (s *OutputStorage) Clear() {
	if s == nil {
		return
	}

	sentinel := &node{reset: true}
	if s.push(sentinel) {
		s.head.Store(sentinel)
	}
}

func (s *OutputStorage) push(n *node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	s.tail.next.Store(n)
	s.tail = n
	s.broadcaster.Publish(struct{}{})
	return true
}

// Chunk is one element delivered by Follow.
type Chunk struct {
	Data []byte
	// Reset marks a Clear; Data is empty.
	Reset bool
}

// Subscribe streams the current generation from its beginning and then
// follows new output until the storage is stopped or ctx is done.
func (s *OutputStorage) Subscribe(ctx context.Context, capacity int) <-chan []byte {
	ch := make(chan []byte, capacity)
	s.stream(ctx, func(n *node) bool {
		if n.reset || len(n.data) == 0 {
			return true
		}
		select {
		case ch <- n.data:
			return true
		case <-ctx.Done():
			return false
		}
	}, func() { close(ch) })

	return ch
}

// Follow is Subscribe for readers that mirror the storage, such as a
// console: every later Clear arrives as a Chunk with Reset set.
func (s *OutputStorage) Follow(ctx context.Context, capacity int) <-chan Chunk {
	ch := make(chan Chunk, capacity)
	s.stream(ctx, func(n *node) bool {
		if !n.reset && len(n.data) == 0 {
			return true
		}
		select {
		case ch <- Chunk{Data: n.data, Reset: n.reset}:
			return true
		case <-ctx.Done():
			return false
		}
	}, func() { close(ch) })

	return ch
}

// stream hands every node after the current head to emit, on its own
// goroutine, and calls done when it ends.
func (s *OutputStorage) stream(ctx context.Context, emit func(*node) bool, done func()) {
	// Take the head before subscribing so nothing appended in between is lost.
	start := s.head.Load()
	notifier, err := s.broadcaster.Subscribe()
	if err == nil {
		go s.follow(ctx, start, notifier, emit, done)
	} else {
		go func() {
			defer done()
			replay(start, emit)
		}()
	}
}

func (s *OutputStorage) follow(ctx context.Context, prev *node, notifier chan struct{}, emit func(*node) bool, done func()) {
	id := uuid.New()
	logger.Debugf("%s following output", id)
	defer done()
	defer s.broadcaster.Unsubscribe(notifier)

	for {
		current := prev.next.Load()
		if current == nil {
			select {
			case _, ok := <-notifier:
				if !ok {
					// Stopped: drain whatever was appended before Stop.
					replay(prev, emit)
					logger.Debugf("%s storage stopped", id)
					return
				}
				continue
			case <-ctx.Done():
				return
			}
		}
		prev = current

		if !emit(current) {
			return
		}
	}
}

// replay delivers everything currently linked after prev.
func replay(prev *node, emit func(*node) bool) {
	for {
		current := prev.next.Load()
		if current == nil {
			return
		}
		prev = current
		if !emit(current) {
			return
		}
	}
}

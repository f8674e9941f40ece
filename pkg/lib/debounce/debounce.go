// Package debounce coalesces bursts of triggers into a single deferred call.
//
// A Slot holds at most one armed timer. Every Schedule call cancels the
// previous one and arms a new timer; only the last call in a burst runs.
// The Pending returned by a cancelled call never settles, so callers must
// wait on it with a context or not at all.
package debounce

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Delay is a debounce duration that can be changed while a Slot is in use.
// Changes apply to the next Schedule call, never to an armed timer.
type Delay struct {
	v atomic.Int64
}

// NewDelay returns a Delay holding the magnitude of d.
func NewDelay(d time.Duration) *Delay {
	delay := &Delay{}
	delay.Set(d)
	return delay
}

// Set stores the magnitude of d.
func (d *Delay) Set(v time.Duration) {
	d.v.Store(int64(abs(v)))
}

// Get returns the current delay.
func (d *Delay) Get() time.Duration {
	return time.Duration(d.v.Load())
}

// Pending is the eventual outcome of a scheduled call.
type Pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

func (p *Pending[T]) settle(v T, err error) {
	p.value = v
	p.err = err
	close(p.done)
}

// Done is closed once the scheduled function has returned.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (p *Pending[T]) Result() (T, error) {
	return p.value, p.err
}

// Wait blocks until the call settles or ctx is done.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Slot is a single-slot debouncer.
type Slot[T any] struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	seq    uint64
}

// Schedule cancels whatever the slot held and arms fn to run after delay.
//
// fn receives a context that is cancelled as soon as a later Schedule or
// Cancel supersedes it, including while fn is already running.
func (s *Slot[T]) Schedule(fn func(ctx context.Context) (T, error), delay time.Duration) *Pending[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()

	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	p := newPending[T]()
	s.timer = time.AfterFunc(abs(delay), func() {
		s.mu.Lock()
		// Stop can lose the race with an expiring timer.
		if s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		v, err := fn(ctx)
		p.settle(v, err)
	})
	return p
}

// Cancel drops the armed call, if any. Its Pending never settles.
func (s *Slot[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.seq++
}

// Armed reports whether a call is waiting for its timer.
func (s *Slot[T]) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Slot[T]) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

package output_storage

import (
	"errors"
	"sync"
)

var errBroadcasterStopped = errors.New("failed to subscribe: broadcaster is stopped")

// Broadcaster fans a stream of wake-up messages out to subscribers. Every
// subscriber channel has room for one message; a slow subscriber only ever
// holds the latest one.
type Broadcaster[T any] struct {
	messageReceiver chan T
	mu              sync.Mutex
	subscribers     map[chan T]struct{}
	stopped         bool
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	broadcaster := &Broadcaster[T]{
		messageReceiver: make(chan T, 1),
		subscribers:     make(map[chan T]struct{}),
	}

	go broadcaster.start()

	return broadcaster
}

func (broadcaster *Broadcaster[T]) start() {
	for msg := range broadcaster.messageReceiver {
		// Sends never block, so they may happen under the lock. That keeps
		// Unsubscribe from closing a channel in the middle of a send.
		broadcaster.mu.Lock()
		for s := range broadcaster.subscribers {
			replaceLatest(s, msg)
		}
		broadcaster.mu.Unlock()
	}

	logger.Debug("broadcaster stopped")
	broadcaster.mu.Lock()
	for s := range broadcaster.subscribers {
		close(s)
	}
	broadcaster.subscribers = nil
	broadcaster.stopped = true
	broadcaster.mu.Unlock()
}

// replaceLatest delivers msg, evicting a buffered message if ch is full.
func replaceLatest[T any](ch chan T, msg T) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

func (broadcaster *Broadcaster[T]) Stop() {
	close(broadcaster.messageReceiver)
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, errBroadcasterStopped
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

func (broadcaster *Broadcaster[T]) Unsubscribe(subscriberSender chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		// Already closed by start.
		return
	}
	if _, ok := broadcaster.subscribers[subscriberSender]; !ok {
		return
	}
	delete(broadcaster.subscribers, subscriberSender)
	close(subscriberSender)
}

// Publish never blocks: if the receiver already holds an undelivered
// message, that message is replaced.
func (broadcaster *Broadcaster[T]) Publish(msg T) {
	replaceLatest(broadcaster.messageReceiver, msg)
}

// Package framechan provides a bounded channel-backed queue with
// overwrite-oldest semantics. It decouples the transport's notification
// callback from the consumer goroutine: producers never block, and when the
// consumer falls behind the oldest queued element is discarded rather than
// stalling inbound delivery. Delivery order of retained elements is
// preserved.
package framechan

import "sync/atomic"

// Queue is a bounded drop-oldest queue of T.
type Queue[T any] struct {
	ch      chan T
	written atomic.Int64
	dropped atomic.Int64
}

// New creates a Queue with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("framechan: capacity must be > 0")
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Send enqueues v without blocking. If the queue is full the oldest element
// is discarded to make room. Returns true if an element was discarded.
func (q *Queue[T]) Send(v T) bool {
	dropped := false

	select {
	case q.ch <- v:
	default:
		select {
		case <-q.ch:
			q.dropped.Add(1)
			dropped = true
		default:
			// Consumer drained the queue between our two selects.
		}
		q.ch <- v
	}

	q.written.Add(1)
	return dropped
}

// C returns the receive side. Consumers range over it until Close.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Written returns the total number of elements accepted by Send.
func (q *Queue[T]) Written() int64 {
	return q.written.Load()
}

// Dropped returns the number of elements discarded to make room.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Close closes the receive channel. Send must not be called after Close.
func (q *Queue[T]) Close() {
	close(q.ch)
}

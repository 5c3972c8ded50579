// Package ringchan provides a bounded channel with overwrite-oldest
// semantics. It backs the notification queue between the BLE delivery
// callback and the decode loop, and the scanner's discovery stream: a slow
// consumer costs the oldest samples, never a blocked radio callback.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel so that sends never block: when the
// buffer is full the oldest element is dropped to make room.
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// Metrics counts ring channel traffic. All fields are updated atomically.
type Metrics struct {
	Written     int64
	Overwritten int64
	Processed   int64
}

// New creates a RingChannel with the given capacity. Capacity must be
// positive.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// Send inserts v, dropping the oldest buffered element if the channel is
// full. It reports whether an element was dropped. Send never blocks
// indefinitely and is safe from any goroutine, including BLE delivery
// callbacks.
func (rc *RingChannel[T]) Send(v T) bool {
	dropped := false
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch:
			atomic.AddInt64(&rc.metrics.Overwritten, 1)
			dropped = true
		default:
		}
		rc.ch <- v
	}
	atomic.AddInt64(&rc.metrics.Written, 1)
	return dropped
}

// C returns the underlying receive-only channel. Consumers can range over
// it until Close. Reads through C bypass the Processed counter.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Receive blocks until a value is available or the channel is closed; ok is
// false once closed and drained.
func (rc *RingChannel[T]) Receive() (v T, ok bool) {
	v, ok = <-rc.ch
	if ok {
		atomic.AddInt64(&rc.metrics.Processed, 1)
	}
	return v, ok
}

// TryReceive performs a non-blocking receive.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			atomic.AddInt64(&rc.metrics.Processed, 1)
		}
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int { return len(rc.ch) }

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Close closes the channel. Sending after Close panics.
func (rc *RingChannel[T]) Close() { close(rc.ch) }

// Snapshot returns the current metric values.
func (rc *RingChannel[T]) Snapshot() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
		Processed:   atomic.LoadInt64(&rc.metrics.Processed),
	}
}

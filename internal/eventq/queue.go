// Package eventq provides the ordered queue that carries decoded render
// events from the output pump to the render consumer.
package eventq

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New("event queue is closed")

// Queue is a FIFO queue with any number of producers and a single consumer.
//
// An unbounded queue (capacity 0) never blocks producers, so output can run
// ahead of a slow consumer. A bounded queue blocks Push while it holds
// capacity items, pushing back on the producer.
//
// Close marks the producer side as gone. Items pushed before Close are still
// delivered; Pop reports ok=false only once the queue is closed and empty.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []T
	head     int
	capacity int
	closed   bool
}

// New returns an unbounded queue.
func New[T any]() *Queue[T] {
	return NewBounded[T](0)
}

// NewBounded returns a queue holding at most capacity items. A capacity of
// zero or less means unbounded.
func NewBounded[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	q := &Queue[T]{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.capacity > 0 && q.lenLocked() >= q.capacity {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.items = append(q.items, v)
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the head of the queue, blocking until an item is
// available. It returns ok=false when the queue is closed and drained.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		if q.closed {
			return v, false
		}
		q.notEmpty.Wait()
	}

	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 >= len(q.items) {
		// Reclaim the consumed prefix.
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}

	if q.capacity > 0 {
		q.notFull.Signal()
	}
	return v, true
}

// Close marks the queue closed and wakes every blocked caller. It is safe
// to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Cap returns the queue capacity, or 0 for an unbounded queue.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

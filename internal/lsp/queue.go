package lsp

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO channel between the transport's reader
// goroutine and session logic. The reader produces, exactly one consumer
// drains. Delivery order matches Put order.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Put appends an item. Puts after Close are dropped.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get blocks until an item is available, the context ends, or the queue is
// closed and drained. Items buffered before Close are still delivered.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.wake:
		case <-q.done:
		}
	}
}

// TryGet returns the next item without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes any blocked Get. Buffered items remain readable; once drained
// Get returns ErrQueueClosed. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
}

package midi

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded FIFO between a producer that must never block (a byte
// reader, a parser callback) and one consumer. When full, the newest value is
// dropped and counted.
type Queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// ByteQueue carries raw received bytes.
type ByteQueue = Queue[byte]

// NewQueue creates a queue holding up to depth values (minimum 1).
func NewQueue[T any](depth int) *Queue[T] {
	if depth < 1 {
		depth = 1
	}
	return &Queue[T]{ch: make(chan T, depth)}
}

// TryPush enqueues v without blocking. It returns false, and counts the drop,
// when the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop blocks until a value is available or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryPop returns the next value if one is queued.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for use in select loops.
func (q *Queue[T]) C() <-chan T { return q.ch }

func (q *Queue[T]) Len() int { return len(q.ch) }
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Dropped returns how many values were discarded because the queue was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

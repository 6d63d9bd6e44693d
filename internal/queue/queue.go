// Package queue provides the two queue primitives every stage shares: a plain
// FIFO for raw input and a promotion queue that serves live audience items
// ahead of auto-generated filler.
package queue

import "sync"

// Prioritized is implemented by queue items that can be auto-generated
// filler. Non-auto items are promoted past queued filler.
type Prioritized interface {
	AutoGenerated() bool
}

// FIFO is a mutex-guarded unbounded first-in first-out queue.
type FIFO[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewFIFO returns an empty FIFO queue.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

// Push appends one item at the tail.
func (q *FIFO[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// PopBatch removes and returns up to max items from the head.
func (q *FIFO[T]) PopBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max < 1 || len(q.items) == 0 {
		return nil
	}
	n := max
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]T, n)
	copy(batch, q.items[:n])
	q.items = append(q.items[:0:0], q.items[n:]...)
	return batch
}

// Len returns the current queue depth.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Promotion is a FIFO queue with one extra dequeue rule: if any non-auto
// item is queued, PopNext returns the oldest one and permanently removes the
// auto-generated items that were ahead of it. Within a class, arrival order
// is preserved.
type Promotion[T Prioritized] struct {
	mu    sync.Mutex
	items []T
}

// NewPromotion returns an empty promotion queue.
func NewPromotion[T Prioritized]() *Promotion[T] {
	return &Promotion[T]{}
}

// Push appends one item at the tail.
func (q *Promotion[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Len returns the current queue depth.
func (q *Promotion[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasNonAuto reports whether any non-auto item is queued.
func (q *Promotion[T]) HasNonAuto() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if !item.AutoGenerated() {
			return true
		}
	}
	return false
}

// PopNext removes and returns the next item under the promotion rule. Auto
// items skipped on the way to a non-auto item are dropped from the queue and
// returned so the caller can log them and clear observers; they are never
// requeued.
func (q *Promotion[T]) PopNext() (next T, skipped []T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, nil, false
	}

	promote := false
	for _, item := range q.items {
		if !item.AutoGenerated() {
			promote = true
			break
		}
	}

	if !promote {
		next = q.items[0]
		q.items = append(q.items[:0:0], q.items[1:]...)
		return next, nil, true
	}

	for len(q.items) > 0 {
		candidate := q.items[0]
		q.items = append(q.items[:0:0], q.items[1:]...)
		if !candidate.AutoGenerated() {
			return candidate, skipped, true
		}
		skipped = append(skipped, candidate)
	}
	// Unreachable: a non-auto item was observed under the same lock.
	return zero, skipped, false
}

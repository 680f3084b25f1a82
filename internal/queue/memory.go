// Package queue provides the work queue feeding ingest workers.
package queue

import (
	"context"
	"errors"

	"github.com/tracklab/ingest/internal/ingest"
)

// ErrQueueFull is returned when Enqueue would exceed the configured depth.
var ErrQueueFull = errors.New("queue full")

// ErrQueueClosed is returned by Dequeue after Close drains the queue.
var ErrQueueClosed = errors.New("queue closed")

// Memory is a bounded in-process queue backed by a buffered channel.
type Memory struct {
	items chan ingest.QueueItem
}

// NewMemory creates a queue holding at most depth items.
func NewMemory(depth int) *Memory {
	if depth <= 0 {
		depth = 64
	}
	return &Memory{items: make(chan ingest.QueueItem, depth)}
}

// Enqueue adds an item without blocking. A full queue is reported to the
// caller so it can shed load instead of stalling the API handler.
func (q *Memory) Enqueue(ctx context.Context, item ingest.QueueItem) error {
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an item is available, the queue is closed, or the
// context is canceled.
func (q *Memory) Dequeue(ctx context.Context) (ingest.QueueItem, error) {
	select {
	case item, ok := <-q.items:
		if !ok {
			return ingest.QueueItem{}, ErrQueueClosed
		}
		return item, nil
	case <-ctx.Done():
		return ingest.QueueItem{}, ctx.Err()
	}
}

// Len reports how many items are waiting.
func (q *Memory) Len() int {
	return len(q.items)
}

// Close stops accepting new items. Pending items can still be dequeued.
func (q *Memory) Close() {
	close(q.items)
}

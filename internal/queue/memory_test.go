package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tracklab/ingest/internal/ingest"
)

func TestMemoryEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewMemory(4)
	require.NoError(t, q.Enqueue(context.Background(), ingest.QueueItem{JobID: "a"}))
	require.NoError(t, q.Enqueue(context.Background(), ingest.QueueItem{JobID: "b"}))
	require.Equal(t, 2, q.Len())

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", item.JobID)

	item, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", item.JobID)
}

func TestMemoryEnqueueFull(t *testing.T) {
	t.Parallel()

	q := NewMemory(1)
	require.NoError(t, q.Enqueue(context.Background(), ingest.QueueItem{JobID: "a"}))
	err := q.Enqueue(context.Background(), ingest.QueueItem{JobID: "b"})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestMemoryDequeueCanceled(t *testing.T) {
	t.Parallel()

	q := NewMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryClose(t *testing.T) {
	t.Parallel()

	q := NewMemory(2)
	require.NoError(t, q.Enqueue(context.Background(), ingest.QueueItem{JobID: "a"}))
	q.Close()

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", item.JobID)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}

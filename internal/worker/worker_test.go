package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/jobs"
	"github.com/tracklab/ingest/internal/queue"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
	fail map[string]error
}

func (r *fakeRunner) Run(_ context.Context, req ingest.SourceRequest) (ingest.IngestionResult, error) {
	r.mu.Lock()
	r.runs = append(r.runs, req.URL)
	r.mu.Unlock()
	if err, ok := r.fail[req.URL]; ok {
		return ingest.IngestionResult{}, err
	}
	return ingest.IngestionResult{ID: "run-" + req.URL, SourceURL: req.URL}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestWorkerProcessesJobs(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(4)
	store := jobs.NewMemoryStore()
	runner := &fakeRunner{}
	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	w := New(q, store, runner, clock, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, ingest.Job{ID: "j1", Status: ingest.JobStatusQueued}))
	require.NoError(t, q.Enqueue(ctx, ingest.QueueItem{JobID: "j1", Request: ingest.SourceRequest{URL: "a"}}))
	q.Close()

	require.NoError(t, w.Run(ctx))

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, ingest.JobStatusSucceeded, job.Status)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	require.Equal(t, "run-a", job.Result.ID)
	require.Equal(t, []string{"a"}, runner.runs)
}

func TestWorkerRecordsFailure(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(4)
	store := jobs.NewMemoryStore()
	runner := &fakeRunner{fail: map[string]error{
		"bad": ingest.NewError(ingest.KindTimeout, "download exceeded budget"),
	}}
	w := New(q, store, runner, fixedClock{t: time.Now()}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, ingest.Job{ID: "j2", Status: ingest.JobStatusQueued}))
	require.NoError(t, q.Enqueue(ctx, ingest.QueueItem{JobID: "j2", Request: ingest.SourceRequest{URL: "bad"}}))
	q.Close()

	require.NoError(t, w.Run(ctx))

	job, err := store.GetJob(ctx, "j2")
	require.NoError(t, err)
	require.Equal(t, ingest.JobStatusFailed, job.Status)
	require.Equal(t, "timeout", job.ErrorKind)
	require.Nil(t, job.Result)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := queue.NewMemory(1)
	w := New(q, jobs.NewMemoryStore(), &fakeRunner{}, fixedClock{t: time.Now()}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
}

// Package worker drains the job queue and runs ingestions.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/queue"
)

// Runner executes one ingestion request end to end.
type Runner interface {
	Run(ctx context.Context, req ingest.SourceRequest) (ingest.IngestionResult, error)
}

// Worker pulls queued jobs and records their outcomes in the job store.
type Worker struct {
	queue  ingest.Queue
	jobs   ingest.JobStore
	runner Runner
	clock  ingest.Clock
	logger *zap.Logger
}

// New creates a worker. All dependencies are required.
func New(q ingest.Queue, jobs ingest.JobStore, runner Runner, clock ingest.Clock, logger *zap.Logger) *Worker {
	return &Worker{
		queue:  q,
		jobs:   jobs,
		runner: runner,
		clock:  clock,
		logger: logger,
	}
}

// Run processes jobs until the context is canceled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			return err
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item ingest.QueueItem) {
	log := w.logger.With(zap.String("job_id", item.JobID))

	if err := w.jobs.MarkRunning(ctx, item.JobID, w.clock.Now()); err != nil {
		log.Error("marking job running", zap.Error(err))
		return
	}

	start := time.Now()
	result, runErr := w.runner.Run(ctx, item.Request)

	status := ingest.JobStatusSucceeded
	var errKind, errText string
	var resultPtr *ingest.IngestionResult
	if runErr != nil {
		status = ingest.JobStatusFailed
		errText = runErr.Error()
		var ie *ingest.Error
		if errors.As(runErr, &ie) {
			errKind = string(ie.Kind)
		}
		log.Warn("job failed",
			zap.String("error_kind", errKind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(runErr),
		)
	} else {
		resultPtr = &result
		log.Info("job succeeded",
			zap.String("run_id", result.ID),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	if err := w.jobs.MarkFinished(ctx, item.JobID, status, errKind, errText, resultPtr, w.clock.Now()); err != nil {
		log.Error("marking job finished", zap.Error(err))
	}
}

// Package dispatcher fans ingest jobs out across a fixed worker pool.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/worker"
)

// Dispatcher runs a pool of workers against a shared queue.
type Dispatcher struct {
	queue   ingest.Queue
	jobs    ingest.JobStore
	runner  worker.Runner
	clock   ingest.Clock
	logger  *zap.Logger
	workers int
}

// New creates a dispatcher with the given pool size.
func New(q ingest.Queue, jobs ingest.JobStore, runner worker.Runner, clock ingest.Clock, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   q,
		jobs:    jobs,
		runner:  runner,
		clock:   clock,
		logger:  logger,
		workers: workers,
	}
}

// Run starts the pool and blocks until every worker has exited.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("starting workers", zap.Int("count", d.workers))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		w := worker.New(d.queue, d.jobs, d.runner, d.clock, d.logger.With(zap.Int("worker", i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				d.logger.Error("worker exited", zap.Error(err))
			}
		}()
	}
	wg.Wait()
	d.logger.Info("workers drained")
}

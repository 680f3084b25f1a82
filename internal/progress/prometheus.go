package progress

import (
	"context"

	"github.com/tracklab/ingest/internal/metrics"
)

// MetricsSink mirrors stage events into the Prometheus collectors.
type MetricsSink struct{}

// NewMetricsSink builds a MetricsSink; it assumes metrics.Init was called.
func NewMetricsSink() *MetricsSink {
	return &MetricsSink{}
}

// Record implements Sink.
func (s *MetricsSink) Record(_ context.Context, ev Event) {
	switch ev.Stage {
	case StageSucceeded, StageFailed:
		metrics.ObserveRun(string(ev.Stage))
	default:
		if ev.Dur > 0 {
			metrics.ObserveStage(string(ev.Stage), ev.Dur)
		}
	}
}

// Package progress defines the stage events emitted by pipeline runs and
// fans them out to registered sinks.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stage denotes which pipeline milestone an Event records.
type Stage string

// Supported stages, in pipeline order.
const (
	StageValidating  Stage = "validating"
	StageDownloading Stage = "downloading"
	StageExtracting  Stage = "extracting"
	StageAssessing   Stage = "assessing"
	StageSucceeded   Stage = "succeeded"
	StageFailed      Stage = "failed"
)

// Event captures one pipeline milestone.
type Event struct {
	RunID string
	TS    time.Time
	Stage Stage
	URL   string
	Bytes int64
	Dur   time.Duration
	Note  string
}

// Sink consumes events. Implementations must tolerate bursts and never block
// for long; the hub calls them synchronously.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Hub fans events out to sinks. A nil *Hub is valid and drops everything,
// so components can emit unconditionally.
type Hub struct {
	sinks []Sink
}

// NewHub builds a Hub over the given sinks.
func NewHub(sinks ...Sink) *Hub {
	return &Hub{sinks: append([]Sink(nil), sinks...)}
}

// Emit delivers ev to every sink.
func (h *Hub) Emit(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	for _, sink := range h.sinks {
		sink.Record(ctx, ev)
	}
}

// LogSink writes events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.String("stage", string(ev.Stage)),
	}
	if ev.URL != "" {
		fields = append(fields, zap.String("url", ev.URL))
	}
	if ev.Bytes > 0 {
		fields = append(fields, zap.Int64("bytes", ev.Bytes))
	}
	if ev.Dur > 0 {
		fields = append(fields, zap.Duration("duration", ev.Dur))
	}
	if ev.Note != "" {
		fields = append(fields, zap.String("note", ev.Note))
	}
	s.logger.Info("pipeline progress", fields...)
}

// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRunsTotal      *prometheus.CounterVec
	ingestBytesTotal     prometheus.Counter
	ingestStageSeconds   *prometheus.HistogramVec
	ingestQualityScore   prometheus.Histogram
	downloadRetriesTotal prometheus.Counter
	ingestInFlight       prometheus.Gauge

	once sync.Once
)

// Init registers the ingestion collectors with the default registry.
// It is safe to call multiple times.
func Init() {
	once.Do(func() {
		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total pipeline runs, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		ingestBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_bytes_downloaded_total",
				Help: "Total bytes streamed to disk by the downloader.",
			},
		)

		ingestStageSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_stage_duration_seconds",
				Help:    "Histogram of per-stage pipeline latency.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"stage"},
		)

		ingestQualityScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_quality_score",
				Help:    "Distribution of final metadata quality scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		)

		downloadRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_download_retries_total",
				Help: "Total transient-failure retries performed by the downloader.",
			},
		)

		ingestInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_in_flight",
				Help: "Number of pipeline runs currently executing.",
			},
		)
	})
}

// ObserveRun records a terminal pipeline outcome.
func ObserveRun(outcome string) {
	if ingestRunsTotal != nil {
		ingestRunsTotal.WithLabelValues(outcome).Inc()
	}
}

// AddBytesDownloaded accumulates streamed byte counts.
func AddBytesDownloaded(n int64) {
	if ingestBytesTotal != nil && n > 0 {
		ingestBytesTotal.Add(float64(n))
	}
}

// ObserveStage records the latency of one pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	if ingestStageSeconds != nil {
		ingestStageSeconds.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveQualityScore records a final quality score.
func ObserveQualityScore(score float64) {
	if ingestQualityScore != nil {
		ingestQualityScore.Observe(score)
	}
}

// ObserveDownloadRetry counts one downloader retry.
func ObserveDownloadRetry() {
	if downloadRetriesTotal != nil {
		downloadRetriesTotal.Inc()
	}
}

// RunStarted marks a pipeline run in flight; the returned func marks it done.
func RunStarted() func() {
	if ingestInFlight == nil {
		return func() {}
	}
	ingestInFlight.Inc()
	return func() { ingestInFlight.Dec() }
}

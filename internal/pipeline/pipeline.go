// Package pipeline sequences validation, download, extraction and assessment
// for one ingestion request, owning the temp asset for the whole run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/hash"
	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/metrics"
	"github.com/tracklab/ingest/internal/progress"
)

// State tracks pipeline progress. Transitions are strictly forward.
type State string

// Pipeline states in order.
const (
	StateCreated     State = "created"
	StateValidating  State = "validating"
	StateDownloading State = "downloading"
	StateExtracting  State = "extracting"
	StateAssessing   State = "assessing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Config carries ceilings and defaults applied to every request.
type Config struct {
	DefaultMaxBytes  int64
	MaxBytesCeiling  int64
	DefaultTimeout   time.Duration
	TimeoutCeiling   time.Duration
	QualityThreshold float64
	// EnforceThreshold makes a sub-threshold score a hard failure; when
	// false the result is accepted and the issues are surfaced as warnings.
	EnforceThreshold bool
	// HandoffPrefix prefixes blob paths written during storage handoff.
	HandoffPrefix string
	// Topic names the completion-event destination.
	Topic string
	// KeepAsset retains the temp file after a successful run and passes
	// ownership to the caller through the result.
	KeepAsset bool
}

// Pipeline wires the four stages plus the external handoffs.
type Pipeline struct {
	validator ingest.Validator
	download  ingest.Downloader
	extractor ingest.Extractor
	assessor  ingest.Assessor

	blobs     ingest.BlobStore   // optional
	results   ingest.ResultStore // optional
	publisher ingest.Publisher   // optional

	ids    ingest.IDGenerator
	clock  ingest.Clock
	hub    *progress.Hub
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pipeline. blobs, results and publisher may be nil; the
// corresponding handoffs are skipped.
func New(
	validator ingest.Validator,
	download ingest.Downloader,
	extractor ingest.Extractor,
	assessor ingest.Assessor,
	blobs ingest.BlobStore,
	results ingest.ResultStore,
	publisher ingest.Publisher,
	ids ingest.IDGenerator,
	clock ingest.Clock,
	hub *progress.Hub,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		validator: validator,
		download:  download,
		extractor: extractor,
		assessor:  assessor,
		blobs:     blobs,
		results:   results,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		hub:       hub,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one pipeline instance end-to-end. The returned error, when
// non-nil, is always an *ingest.Error carrying exactly one kind; partial
// results are never returned alongside an error.
func (p *Pipeline) Run(ctx context.Context, req ingest.SourceRequest) (ingest.IngestionResult, error) {
	done := metrics.RunStarted()
	defer done()

	runID, err := p.ids.NewID()
	if err != nil {
		return ingest.IngestionResult{}, ingest.WrapError(ingest.KindFetchFailed, err, "generate run id")
	}
	req = p.applyBudgets(req)
	log := p.logger.With(zap.String("run_id", runID), zap.String("url", req.URL))

	result, runErr := p.run(ctx, runID, req, log)
	if runErr != nil {
		p.emit(ctx, runID, progress.StageFailed, req.URL, 0, 0, runErr.Error())
		p.publishTerminal(ctx, runID, req, nil, runErr)
		log.Warn("ingestion failed", zap.Error(runErr))
		return ingest.IngestionResult{}, runErr
	}
	p.emit(ctx, runID, progress.StageSucceeded, req.URL, result.Asset.Size, 0, "")
	p.publishTerminal(ctx, runID, req, &result, nil)
	log.Info("ingestion succeeded",
		zap.Float64("quality_score", result.Quality.Score),
		zap.Int64("bytes", result.Asset.Size))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, req ingest.SourceRequest, log *zap.Logger) (ingest.IngestionResult, error) {
	// Validating.
	stageStart := p.clock.Now()
	p.emit(ctx, runID, progress.StageValidating, req.URL, 0, 0, "")
	target, err := p.validator.Validate(ctx, req.URL, true)
	if err != nil {
		return ingest.IngestionResult{}, asIngestError(err, ingest.KindInvalidHost)
	}
	p.observeStage(progress.StageValidating, stageStart)

	// Downloading. The asset belongs to this run from here on and is
	// deleted on every exit path unless ownership transfers at the end.
	stageStart = p.clock.Now()
	p.emit(ctx, runID, progress.StageDownloading, target.Normalized, 0, 0, "")
	asset, err := p.download.Fetch(ctx, target, req)
	if err != nil {
		return ingest.IngestionResult{}, asIngestError(err, ingest.KindFetchFailed)
	}
	keep := false
	defer func() {
		if keep {
			return
		}
		if rmErr := os.Remove(asset.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("temp asset cleanup failed", zap.String("path", asset.Path), zap.Error(rmErr))
		}
	}()
	p.observeStage(progress.StageDownloading, stageStart)

	// Extracting. A damaged container may still salvage partial metadata;
	// only an empty salvage is terminal.
	stageStart = p.clock.Now()
	p.emit(ctx, runID, progress.StageExtracting, target.Normalized, asset.Size, 0, "")
	md, err := p.extractor.Extract(ctx, asset, req)
	if err != nil {
		if md.IsEmpty() {
			return ingest.IngestionResult{}, asIngestError(err, ingest.KindExtractionFailed)
		}
		log.Warn("continuing with partial metadata", zap.Error(err))
	}
	p.observeStage(progress.StageExtracting, stageStart)

	// Assessing, with at most one repair cycle.
	stageStart = p.clock.Now()
	p.emit(ctx, runID, progress.StageAssessing, target.Normalized, 0, 0, "")
	report := p.assessor.Assess(md)
	if len(report.Issues) > 0 {
		repaired := p.assessor.Repair(md)
		if reassessed := p.assessor.Assess(repaired); reassessed.Score > report.Score {
			md, report = repaired, reassessed
		}
	}
	threshold := req.QualityThreshold
	if threshold <= 0 {
		threshold = p.cfg.QualityThreshold
	}
	if report.Score < threshold {
		if p.cfg.EnforceThreshold || req.QualityThreshold > 0 {
			qErr := ingest.NewError(ingest.KindMetadataQuality,
				"metadata quality %.2f below threshold %.2f", report.Score, threshold)
			qErr.Score = report.Score
			qErr.Issues = report.Issues
			return ingest.IngestionResult{}, qErr
		}
		log.Warn("accepting sub-threshold metadata",
			zap.Float64("score", report.Score),
			zap.Strings("issues", report.Issues))
	}
	metrics.ObserveQualityScore(report.Score)
	p.observeStage(progress.StageAssessing, stageStart)

	result := ingest.IngestionResult{
		ID:          runID,
		SourceURL:   target.Normalized,
		Metadata:    md,
		Quality:     report,
		Asset:       asset,
		CompletedAt: p.clock.Now().UTC(),
	}

	// Handoffs run while the asset still exists; their failures happen
	// outside this pipeline's boundary and never fail the run.
	p.handoff(ctx, &result, log)

	if p.cfg.KeepAsset {
		keep = true
	}
	return result, nil
}

// applyBudgets fills defaults and clamps caller budgets to the ceilings.
func (p *Pipeline) applyBudgets(req ingest.SourceRequest) ingest.SourceRequest {
	if req.MaxBytes <= 0 {
		req.MaxBytes = p.cfg.DefaultMaxBytes
	}
	if p.cfg.MaxBytesCeiling > 0 && req.MaxBytes > p.cfg.MaxBytesCeiling {
		req.MaxBytes = p.cfg.MaxBytesCeiling
	}
	if req.Timeout <= 0 {
		req.Timeout = p.cfg.DefaultTimeout
	}
	if p.cfg.TimeoutCeiling > 0 && req.Timeout > p.cfg.TimeoutCeiling {
		req.Timeout = p.cfg.TimeoutCeiling
	}
	return req
}

func (p *Pipeline) handoff(ctx context.Context, result *ingest.IngestionResult, log *zap.Logger) {
	digest, err := hash.FileDigest(result.Asset.Path)
	if err != nil {
		log.Warn("asset digest failed", zap.Error(err))
	} else {
		result.Digest = digest
	}

	if p.blobs != nil && result.Digest != "" {
		f, err := os.Open(result.Asset.Path)
		if err != nil {
			log.Warn("storage handoff open failed", zap.Error(err))
		} else {
			uri, putErr := p.blobs.PutObject(ctx, p.blobPath(result), result.Asset.ContentType, f)
			f.Close()
			if putErr != nil {
				log.Warn("storage handoff failed", zap.Error(putErr))
			} else {
				result.BlobURI = uri
			}
		}
	}

	if p.results != nil {
		if err := p.results.SaveResult(ctx, *result); err != nil {
			log.Warn("result persistence failed", zap.Error(err))
		}
	}
}

func (p *Pipeline) blobPath(result *ingest.IngestionResult) string {
	ext := ""
	if result.Metadata.Format != "" {
		ext = "." + result.Metadata.Format
	}
	if p.cfg.HandoffPrefix != "" {
		return fmt.Sprintf("%s/%s%s", p.cfg.HandoffPrefix, result.Digest, ext)
	}
	return result.Digest + ext
}

func (p *Pipeline) publishTerminal(ctx context.Context, runID string, req ingest.SourceRequest, result *ingest.IngestionResult, runErr error) {
	if p.publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id": runID,
		"url":    req.URL,
	}
	if runErr != nil {
		payload["status"] = string(StateFailed)
		payload["error_kind"] = string(ingest.KindOf(runErr))
	} else {
		payload["status"] = string(StateSucceeded)
		payload["quality_score"] = result.Quality.Score
		payload["blob_uri"] = result.BlobURI
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("completion event publish failed", zap.Error(err))
	}
}

func (p *Pipeline) emit(ctx context.Context, runID string, stage progress.Stage, url string, bytes int64, dur time.Duration, note string) {
	p.hub.Emit(ctx, progress.Event{
		RunID: runID,
		Stage: stage,
		URL:   url,
		Bytes: bytes,
		Dur:   dur,
		Note:  note,
	})
}

func (p *Pipeline) observeStage(stage progress.Stage, start time.Time) {
	metrics.ObserveStage(string(stage), p.clock.Now().Sub(start))
}

// asIngestError guarantees the single-kind error contract even when a
// component leaks an untyped error.
func asIngestError(err error, fallback ingest.ErrorKind) error {
	if kind := ingest.KindOf(err); kind != "" {
		return err
	}
	return ingest.WrapError(fallback, err, "pipeline stage failed")
}

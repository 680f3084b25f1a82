// Package app initializes and holds the long-lived services of the ingest
// service, acting as its dependency injection container.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/clock"
	"github.com/tracklab/ingest/internal/config"
	"github.com/tracklab/ingest/internal/database"
	"github.com/tracklab/ingest/internal/dispatcher"
	"github.com/tracklab/ingest/internal/download"
	"github.com/tracklab/ingest/internal/extract"
	"github.com/tracklab/ingest/internal/guard"
	"github.com/tracklab/ingest/internal/id"
	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/jobs"
	"github.com/tracklab/ingest/internal/logging"
	"github.com/tracklab/ingest/internal/metrics"
	"github.com/tracklab/ingest/internal/pipeline"
	"github.com/tracklab/ingest/internal/progress"
	"github.com/tracklab/ingest/internal/publisher"
	"github.com/tracklab/ingest/internal/quality"
	"github.com/tracklab/ingest/internal/queue"
	"github.com/tracklab/ingest/internal/storage"
)

// App wires every service from configuration. Close releases external
// connections.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Pipeline   *pipeline.Pipeline
	Queue      *queue.Memory
	Jobs       *jobs.MemoryStore
	Dispatcher *dispatcher.Dispatcher
	IDs        *id.Generator
	Clock      *clock.System

	closers []func() error
}

// New builds the full service graph. It fails fast when any external
// dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{
		Config: cfg,
		Logger: logger,
		IDs:    id.NewGenerator(),
		Clock:  clock.NewSystem(),
	}

	validator := guard.New(
		guard.Config{BlockedDomains: cfg.Guard.BlockedDomains},
		net.DefaultResolver,
		logger.Named("guard"),
	)
	downloader := download.New(validator, http.DefaultTransport, download.Config{
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
		UserAgent:      cfg.HTTP.UserAgent,
		TempDir:        cfg.Ingest.TempDir,
		MaxRedirects:   cfg.HTTP.MaxRedirects,
	}, logger.Named("download"))
	extractor := extract.New(extract.Config{
		SentinelPattern: cfg.Ingest.SentinelPattern,
	}, logger.Named("extract"))
	assessor := quality.New()

	blobs, err := a.buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	results, err := a.buildResultStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pub, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := progress.NewHub(
		progress.NewLogSink(logger.Named("progress")),
		progress.NewMetricsSink(),
	)

	a.Pipeline = pipeline.New(
		validator, downloader, extractor, assessor,
		blobs, results, pub,
		a.IDs, a.Clock, hub,
		pipeline.Config{
			DefaultMaxBytes:  cfg.MaxBytesDefault(),
			MaxBytesCeiling:  cfg.MaxBytesCeiling(),
			DefaultTimeout:   cfg.TimeoutDefault(),
			TimeoutCeiling:   cfg.TimeoutCeiling(),
			QualityThreshold: cfg.Ingest.QualityThreshold,
			EnforceThreshold: cfg.Ingest.EnforceThreshold,
			HandoffPrefix:    cfg.Storage.Prefix,
			Topic:            cfg.PubSub.TopicName,
		},
		logger.Named("pipeline"),
	)

	a.Queue = queue.NewMemory(cfg.Jobs.QueueDepth)
	a.Jobs = jobs.NewMemoryStore()
	a.Dispatcher = dispatcher.New(a.Queue, a.Jobs, a.Pipeline, a.Clock, cfg.Jobs.Workers, logger.Named("dispatcher"))

	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (ingest.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := storage.NewGCSStore(client, cfg.Storage.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("using gcs blob store", zap.String("bucket", cfg.Storage.GCSBucket))
		return store, nil
	case "local":
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("using local blob store", zap.String("dir", cfg.Storage.LocalDir))
		return store, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	case "none":
		a.Logger.Info("blob storage disabled, assets are discarded after extraction")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func (a *App) buildResultStore(ctx context.Context, cfg config.Config) (ingest.ResultStore, error) {
	if !cfg.DB.Enabled {
		return database.NoOpStore{}, nil
	}
	store, err := database.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	a.Logger.Info("connected to postgres")
	return store, nil
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (ingest.Publisher, error) {
	if !cfg.PubSub.Enabled {
		return nil, nil
	}
	pub, err := publisher.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, logger.Named("publisher"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	a.Logger.Info("publishing completion events",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pub, nil
}

// Close releases external connections in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("closing dependency", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

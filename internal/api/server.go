// Package api exposes the HTTP interface for the ingest service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/config"
	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/worker"
)

// Server wires HTTP handlers to the pipeline, queue and job store.
type Server struct {
	router chi.Router
	runner worker.Runner
	queue  ingest.Queue
	jobs   ingest.JobStore
	ids    ingest.IDGenerator
	clock  ingest.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner worker.Runner,
	queue ingest.Queue,
	jobs ingest.JobStore,
	ids ingest.IDGenerator,
	clock ingest.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		runner: runner,
		queue:  queue,
		jobs:   jobs,
		ids:    ids,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ingest", s.ingestSync)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/{job_id}", s.getJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ingestRequest is the JSON body accepted by both the sync and async
// ingestion endpoints.
type ingestRequest struct {
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers,omitempty"`
	Filename         string            `json:"filename,omitempty"`
	MIMEType         string            `json:"mime_type,omitempty"`
	MaxSizeMB        *int              `json:"max_size_mb,omitempty"`
	TimeoutSeconds   *int              `json:"timeout_seconds,omitempty"`
	QualityThreshold *float64          `json:"quality_threshold,omitempty"`
}

func (s *Server) ingestSync(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status, kind := statusForError(err)
		writeJSON(w, status, map[string]any{
			"error":      err.Error(),
			"error_kind": kind,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.ids.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	now := s.clock.Now()
	job := ingest.Job{
		ID:        jobID,
		Status:    ingest.JobStatusQueued,
		Submitted: now,
		Request:   req,
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "create job")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := ingest.QueueItem{JobID: jobID, Request: req, Submitted: now.Unix()}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		s.markRejected(r.Context(), jobID, err)
		writeError(w, http.StatusServiceUnavailable, "queue full, retry later")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// markRejected closes out a job whose queue insert failed so it does not
// linger as queued forever.
func (s *Server) markRejected(ctx context.Context, jobID string, cause error) {
	err := s.jobs.MarkFinished(ctx, jobID, ingest.JobStatusFailed, "", "enqueue failed: "+cause.Error(), nil, s.clock.Now())
	if err != nil {
		s.logger.Error("marking rejected job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// decodeRequest parses the request body and applies configured budget
// defaults and ceilings. Requests asking for more than the ceiling are
// rejected rather than silently clamped.
func (s *Server) decodeRequest(r *http.Request) (ingest.SourceRequest, error) {
	var body ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ingest.SourceRequest{}, errors.New("invalid JSON")
	}
	if body.URL == "" {
		return ingest.SourceRequest{}, errors.New("url required")
	}

	req := ingest.SourceRequest{
		URL:      body.URL,
		Headers:  body.Headers,
		Filename: body.Filename,
		MIMEType: body.MIMEType,
	}
	if body.MaxSizeMB != nil {
		if *body.MaxSizeMB <= 0 || *body.MaxSizeMB > s.cfg.Ingest.MaxSizeCeilingMB {
			return ingest.SourceRequest{}, fmt.Errorf("max_size_mb must be in (0, %d]", s.cfg.Ingest.MaxSizeCeilingMB)
		}
		req.MaxBytes = int64(*body.MaxSizeMB) * 1024 * 1024
	}
	if body.TimeoutSeconds != nil {
		if *body.TimeoutSeconds <= 0 || *body.TimeoutSeconds > s.cfg.Ingest.TimeoutCeilingSeconds {
			return ingest.SourceRequest{}, fmt.Errorf("timeout_seconds must be in (0, %d]", s.cfg.Ingest.TimeoutCeilingSeconds)
		}
		req.Timeout = time.Duration(*body.TimeoutSeconds) * time.Second
	}
	if body.QualityThreshold != nil {
		if *body.QualityThreshold < 0 || *body.QualityThreshold > 1 {
			return ingest.SourceRequest{}, errors.New("quality_threshold must be in [0,1]")
		}
		req.QualityThreshold = *body.QualityThreshold
	}
	return req, nil
}

// statusForError maps pipeline error kinds onto HTTP statuses.
func statusForError(err error) (int, string) {
	var ie *ingest.Error
	if !errors.As(err, &ie) {
		return http.StatusInternalServerError, ""
	}
	kind := string(ie.Kind)
	switch ie.Kind {
	case ingest.KindInvalidScheme, ingest.KindInvalidHost:
		return http.StatusBadRequest, kind
	case ingest.KindPrivateAddressBlocked, ingest.KindCloudMetadataBlocked:
		return http.StatusUnprocessableEntity, kind
	case ingest.KindSizeExceeded:
		return http.StatusRequestEntityTooLarge, kind
	case ingest.KindTimeout:
		return http.StatusGatewayTimeout, kind
	case ingest.KindFetchFailed:
		return http.StatusBadGateway, kind
	case ingest.KindExtractionFailed, ingest.KindMetadataQuality:
		return http.StatusUnprocessableEntity, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

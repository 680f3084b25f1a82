// Package jobs tracks asynchronous ingestion jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tracklab/ingest/internal/ingest"
)

// ErrNotFound is returned when a job ID is unknown.
var ErrNotFound = errors.New("job not found")

// MemoryStore keeps job state in memory. Job history does not survive a
// restart; callers that need durability should re-submit.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]ingest.Job
}

// NewMemoryStore creates an empty job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]ingest.Job)}
}

// CreateJob registers a new job. The ID must be unused.
func (s *MemoryStore) CreateJob(_ context.Context, job ingest.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns a copy of the job.
func (s *MemoryStore) GetJob(_ context.Context, jobID string) (ingest.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ingest.Job{}, ErrNotFound
	}
	return job, nil
}

// IDs returns every known job ID.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// MarkRunning transitions a job to running.
func (s *MemoryStore) MarkRunning(_ context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = ingest.JobStatusRunning
	job.Started = &at
	s.jobs[jobID] = job
	return nil
}

// MarkFinished records the terminal state of a job.
func (s *MemoryStore) MarkFinished(_ context.Context, jobID string, status ingest.JobStatus, errKind, errText string, result *ingest.IngestionResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.Finished = &at
	job.ErrorKind = errKind
	job.ErrorText = errText
	job.Result = result
	s.jobs[jobID] = job
	return nil
}

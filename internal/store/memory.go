package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"vidrelay/internal/models"
)

// ErrNotFound is returned for unknown or evicted job ids.
var ErrNotFound = errors.New("job not found")

// JobStore holds job records in memory. Each record has a single writer (its
// orchestrator) and any number of readers.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

// NewJobStore builds an empty store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

// Create inserts a fresh job in the preparing state and returns its snapshot.
func (s *JobStore) Create(id, message string) models.Job {
	now := s.now()
	job := &models.Job{
		ID:        id,
		Status:    models.StatusPreparing,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	return *job
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return *job, nil
}

// Transition applies t atomically and returns the resulting snapshot.
func (s *JobStore) Transition(id string, t models.Transition) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	if !models.CanTransition(job.Status, t.Status) {
		return *job, fmt.Errorf("%s -> %s: %w", job.Status, t.Status, models.ErrInvalidTransition)
	}
	t.Apply(job, s.now())
	return *job, nil
}

// SetTraceID records the upstream trace id without changing status.
func (s *JobStore) SetTraceID(id, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.TraceID = traceID
	return nil
}

// EvictCreatedBefore drops every job created before cutoff, in flight or not,
// and returns how many were removed.
func (s *JobStore) EvictCreatedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

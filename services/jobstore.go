package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vidgrab/types"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned when no job exists for an id
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status change would break the job state machine
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobUpdate carries the fields written by a status transition
type JobUpdate struct {
	Status       types.JobStatus
	ArtifactPath string
	Title        string
	Error        string
}

// JobStore interface defines the methods for tracking video jobs
type JobStore interface {
	Create(sourceURL string) types.Job
	Get(id string) (types.Job, bool)
	Update(id string, update JobUpdate) (types.Job, error)
	Delete(id string)
	List() []types.Job
}

// memoryJobStore keeps jobs in a map guarded by a single lock
type memoryJobStore struct {
	jobs map[string]*types.Job
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJobStore creates an empty in-memory job store
func NewJobStore() JobStore {
	return &memoryJobStore{
		jobs: make(map[string]*types.Job),
		now:  time.Now,
	}
}

// Create registers a new pending job and returns a copy of it
func (s *memoryJobStore) Create(sourceURL string) types.Job {
	job := &types.Job{
		ID:        uuid.New().String(),
		Status:    types.JobStatusPending,
		SourceURL: sourceURL,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return *job
}

// Get retrieves a copy of a job by ID
func (s *memoryJobStore) Get(id string) (types.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return types.Job{}, false
	}
	return *job, true
}

// Update applies a status transition to a job
func (s *memoryJobStore) Update(id string, update JobUpdate) (types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return types.Job{}, fmt.Errorf("update %s: %w", id, ErrJobNotFound)
	}

	if !job.Status.CanTransitionTo(update.Status) {
		return *job, fmt.Errorf("update %s from %s to %s: %w", id, job.Status, update.Status, ErrInvalidTransition)
	}
	if update.Status == types.JobStatusCompleted && update.ArtifactPath == "" {
		return *job, fmt.Errorf("update %s: completed without artifact: %w", id, ErrInvalidTransition)
	}

	now := s.now()
	job.Status = update.Status

	switch update.Status {
	case types.JobStatusInProgress:
		job.StartedAt = &now
	case types.JobStatusCompleted:
		job.ArtifactPath = update.ArtifactPath
		job.Title = update.Title
		job.CompletedAt = &now
	case types.JobStatusFailed:
		job.Error = update.Error
		if job.Error == "" {
			job.Error = "unknown error"
		}
		job.CompletedAt = &now
	}

	return *job, nil
}

// Delete removes a job record
func (s *memoryJobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// List returns all jobs, oldest first
func (s *memoryJobStore) List() []types.Job {
	s.mu.RLock()
	jobs := make([]types.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

package services

import (
	"log"
	"os"
	"sync"
	"time"
)

// CleanupScheduler deletes fetched artifacts and their job records after a delay
type CleanupScheduler struct {
	store  JobStore
	delay  time.Duration
	timers map[string]*time.Timer
	mu     sync.Mutex
}

// NewCleanupScheduler creates a scheduler that fires delay after each first fetch
func NewCleanupScheduler(store JobStore, delay time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		store:  store,
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a one-shot cleanup for a job. A job that already has a
// pending cleanup keeps its original deadline and false is returned.
func (s *CleanupScheduler) Schedule(jobID, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, armed := s.timers[jobID]; armed {
		return false
	}

	s.timers[jobID] = time.AfterFunc(s.delay, func() {
		s.cleanup(jobID, path)
	})
	log.Printf("Job %s: artifact scheduled for deletion in %s", jobID, s.delay)
	return true
}

// Pending reports whether a cleanup is armed for a job
func (s *CleanupScheduler) Pending(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, armed := s.timers[jobID]
	return armed
}

// Stop disarms every pending cleanup
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *CleanupScheduler) cleanup(jobID, path string) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Job %s: artifact %s already removed", jobID, path)
		} else {
			log.Printf("Job %s: could not remove artifact %s: %v", jobID, path, err)
		}
	} else {
		log.Printf("Job %s: artifact %s removed", jobID, path)
	}

	s.store.Delete(jobID)

	s.mu.Lock()
	delete(s.timers, jobID)
	s.mu.Unlock()
}

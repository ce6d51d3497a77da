package status

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store. Used by tests and by the one-shot
// CLI commands where no Redis is around.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	jobs  map[string]*Job
	locks map[string]string
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store. ttl<=0 disables
// expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:   ttl,
		jobs:  make(map[string]*Job),
		locks: make(map[string]string),
		now:   time.Now,
	}
}

func (s *MemoryStore) AcquireCollection(ctx context.Context, collectionID, jobID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.locks[collectionID]; ok {
		return holder, ErrConflict
	}
	s.locks[collectionID] = jobID
	return jobID, nil
}

func (s *MemoryStore) ReleaseCollection(ctx context.Context, collectionID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[collectionID] == jobID {
		delete(s.locks, collectionID)
	}
	return nil
}

func (s *MemoryStore) SaveJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(job.UpdatedAt) > s.ttl {
		delete(s.jobs, jobID)
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryStore) JobForCollection(ctx context.Context, collectionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[collectionID], nil
}

func (s *MemoryStore) Close() error {
	return nil
}

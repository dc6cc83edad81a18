// Package memory implements store.JobStore with a mutex-guarded map.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shortforge/internal/store"
)

// Store is an in-process job registry. Readers always receive copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*store.Job
	now  func() time.Time
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*store.Job),
		now:  time.Now,
	}
}

func (s *Store) Create(ctx context.Context, job *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.ErrDuplicateID
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *Store) GetAll(ctx context.Context) ([]*store.Job, error) {
	s.mu.RLock()
	jobs := make([]*store.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) Update(ctx context.Context, id string, u store.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		job.Apply(u)
	}
	return nil
}

func (s *Store) AddLog(ctx context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		job.Logs = append(job.Logs, store.FormatLogEntry(s.now(), text))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Count returns the number of jobs per status.
func (s *Store) Count(ctx context.Context) (map[store.JobStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[store.JobStatus]int64)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

package task

import (
	"sync"

	"github.com/formsense/formsense-api/internal/domain"
)

// TaskStore holds task records keyed by id for the lifetime of the process.
// Implementations must tolerate concurrent Put/Get/Update from interleaved
// requests without cross-contamination between tasks.
// Version: 1.0
type TaskStore interface {
	// Put inserts or replaces the record for the task's id.
	Put(task *domain.Task)

	// Get returns a snapshot copy of the record, or false if the id is
	// unknown. It never fails for a missing key.
	Get(id string) (*domain.Task, bool)

	// Update applies fn to the stored record under the store's lock and
	// reports whether the id was found. All mutation of stored tasks must
	// go through Update so that concurrent readers never observe a
	// half-applied transition.
	Update(id string, fn func(*domain.Task)) bool
}

// MemoryTaskStore is a process-wide in-memory TaskStore. Records live until
// the process is recycled: no eviction, no capacity bound, no persistence.
// That is acceptable here because a task represents a short-lived (nominally
// less than 24h) job and restarts discard in-flight work by contract.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string]*domain.Task),
	}
}

// Put inserts or replaces the record for the task's id.
func (s *MemoryTaskStore) Put(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Get returns a snapshot copy of the record, or false if the id is unknown.
func (s *MemoryTaskStore) Get(id string) (*domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return copyTask(task), true
}

// Update applies fn to the stored record under the write lock.
func (s *MemoryTaskStore) Update(id string, fn func(*domain.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(task)
	return true
}

// Len returns the number of stored tasks. Intended for tests and diagnostics.
func (s *MemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// copyTask returns a copy of the task that is safe to hand to readers while
// the background routine may still mutate the stored record. Results are
// written exactly once under the store lock, so copying the slice header
// plus elements is sufficient.
func copyTask(t *domain.Task) *domain.Task {
	c := *t
	if t.EndedAt != nil {
		ended := *t.EndedAt
		c.EndedAt = &ended
	}
	if t.Results != nil {
		c.Results = make([]domain.ItemResult, len(t.Results))
		copy(c.Results, t.Results)
	}
	return &c
}

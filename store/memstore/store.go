// Package memstore keeps tasks in process memory. It backs tests and the
// "memory" store driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/example/task-tracker/domain/task"
)

// Store provides in-memory task storage.
type Store struct {
	tasks map[string]*domain.Task
	mu    sync.RWMutex
}

var _ domain.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tasks: make(map[string]*domain.Task),
	}
}

// Insert saves a new task. The id must not be in use.
func (s *Store) Insert(_ context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.tasks[t.ID]; found {
		return domain.WrapStoreError("insert", fmt.Errorf("duplicate task id: %s", t.ID))
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// FindByID finds a task by id regardless of owner.
func (s *Store) FindByID(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, found := s.tasks[id]
	if !found {
		return nil, domain.ErrNotFound
	}
	return t.Clone(), nil
}

// Update applies p to the task and returns the stored result.
func (s *Store) Update(_ context.Context, id string, p domain.Patch) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, found := s.tasks[id]
	if !found {
		return nil, domain.ErrNotFound
	}
	p.Apply(t)
	return t.Clone(), nil
}

// Delete removes a task by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.tasks[id]; !found {
		return domain.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Find returns one sorted page of the tasks matching q.
func (s *Store) Find(_ context.Context, q domain.Query) ([]*domain.Task, error) {
	s.mu.RLock()
	matched := s.matching(q.Filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return domain.Less(matched[i], matched[j], q.Sort)
	})

	skip := q.Skip()
	if skip < 0 {
		skip = 0
	}
	if skip >= len(matched) {
		return []*domain.Task{}, nil
	}
	end := len(matched)
	if q.Limit > 0 && skip+q.Limit < end {
		end = skip + q.Limit
	}
	return matched[skip:end], nil
}

// Count returns how many tasks match f.
func (s *Store) Count(_ context.Context, f domain.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.tasks {
		if domain.Matches(t, f) {
			n++
		}
	}
	return n, nil
}

// CountBy groups the tasks matching f by field. Only values that occur are
// present in the result.
func (s *Store) CountBy(_ context.Context, f domain.Filter, field domain.GroupField) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, t := range s.tasks {
		if !domain.Matches(t, f) {
			continue
		}
		switch field {
		case domain.GroupByStatus:
			counts[string(t.Status)]++
		case domain.GroupByPriority:
			counts[string(t.Priority)]++
		case domain.GroupByCategory:
			counts[string(t.Category)]++
		default:
			return nil, domain.WrapStoreError("count by", fmt.Errorf("unknown group field: %s", field))
		}
	}
	return counts, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) matching(f domain.Filter) []*domain.Task {
	result := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if domain.Matches(t, f) {
			result = append(result, t.Clone())
		}
	}
	return result
}

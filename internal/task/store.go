package task

import (
	"context"
	"sort"
	"sync"
)

// Store persists task records. Implementations hand out copies: a record
// returned by Get is never mutated by a concurrent Update.
type Store interface {
	Create(ctx context.Context, t Task) error
	Update(ctx context.Context, t Task) error
	Get(ctx context.Context, id string) (Task, error)
	List(ctx context.Context) ([]Task, error)
}

type memoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemoryStore returns a process-local store. Records live until exit.
func NewMemoryStore() Store { //nolint:ireturn
	return &memoryStore{tasks: make(map[string]Task)}
}

func (s *memoryStore) Create(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return ErrTaskExists
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *memoryStore) Update(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; !exists {
		return ErrTaskNotFound
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *memoryStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	s.mu.RUnlock()
	sortByCreated(out)
	return out, nil
}

func sortByCreated(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

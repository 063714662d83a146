package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fileutil "mp3fetch/internal/file"
)

// fileStore keeps one status.json per task under <dataDir>/tasks/<id>/.
type fileStore struct {
	mu      sync.Mutex
	dataDir string
}

func NewFileStore(dataDir string) Store { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (s *fileStore) tasksRoot() string {
	return filepath.Join(s.dataDir, "tasks")
}

func (s *fileStore) statusPath(taskID string) string {
	return filepath.Join(s.tasksRoot(), taskID, "status.json")
}

func (s *fileStore) Create(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fileutil.Exists(s.statusPath(t.ID)) {
		return ErrTaskExists
	}
	return s.write(t)
}

func (s *fileStore) Update(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fileutil.Exists(s.statusPath(t.ID)) {
		return ErrTaskNotFound
	}
	return s.write(t)
}

func (s *fileStore) write(t Task) error {
	if err := fileutil.EnsureDir(filepath.Dir(s.statusPath(t.ID))); err != nil {
		return fmt.Errorf("ensure task dir: %w", err)
	}
	return fileutil.WriteJSONAtomic(s.statusPath(t.ID), t) //nolint:wrapcheck
}

func (s *fileStore) Get(_ context.Context, id string) (Task, error) {
	if id == "" || filepath.Base(id) != id {
		return Task{}, ErrTaskNotFound
	}
	return s.read(id)
}

func (s *fileStore) read(id string) (Task, error) {
	b, err := os.ReadFile(s.statusPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("read task: %w", err)
	}
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

func (s *fileStore) List(_ context.Context) ([]Task, error) {
	entries, err := os.ReadDir(s.tasksRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	tasks := make([]Task, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := s.read(e.Name())
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	sortByCreated(tasks)
	return tasks, nil
}

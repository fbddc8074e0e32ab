package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/jessm23/portafolio-backend/internal/projects/domain"
)

// JSONStore keeps every project in a single pretty-printed JSON array.
// All access goes through one mutex so read-modify-write cycles from
// concurrent requests cannot lose updates.
type JSONStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a store backed by the file at path on fs.
func NewJSONStore(fs afero.Fs, path string) *JSONStore {
	return &JSONStore{fs: fs, path: path}
}

// Path returns the record file location.
func (s *JSONStore) Path() string {
	return s.path
}

// ReadAll returns every record. A missing file is an empty store.
func (s *JSONStore) ReadAll(ctx context.Context) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// WriteAll replaces the whole store with projects.
func (s *JSONStore) WriteAll(ctx context.Context, projects []domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(projects)
}

// Update runs fn over the current records and persists what it returns.
// Nothing is written when fn fails.
func (s *JSONStore) Update(ctx context.Context, fn func([]domain.Project) ([]domain.Project, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.write(next)
}

func (s *JSONStore) read() ([]domain.Project, error) {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat record store: %w", err)
	}
	if !exists {
		return []domain.Project{}, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Project{}, nil
	}

	var projects []domain.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptStore, err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (s *JSONStore) write(projects []domain.Project) error {
	if projects == nil {
		projects = []domain.Project{}
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create record dir: %w", err)
	}

	// write-then-rename so readers never see a half-written file
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()[:8]+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record store: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace record store: %w", err)
	}
	return nil
}

// Package file provides a file-based workflow state store: one JSON document
// per record. Conditional transitions are serialized through a process-level
// mutex; the file store assumes a single writing process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

type Store struct {
	root string
	mu   sync.Mutex
}

func NewStore(root string) *Store {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Store{root: cleanRoot}
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.root, "workflows", id+".json")
}

func (s *Store) read(id string) (*models.WorkflowRecord, error) {
	payload, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNotFound
		}

		return nil, err
	}

	var record models.WorkflowRecord

	err = json.Unmarshal(payload, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow record %s: %w", id, err)
	}

	return &record, nil
}

func (s *Store) write(record *models.WorkflowRecord) error {
	err := os.MkdirAll(filepath.Join(s.root, "workflows"), 0o755)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.recordPath(record.ID), payload, 0o644)
}

func (s *Store) Create(_ context.Context, record *models.WorkflowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.read(record.ID)
	if err == nil {
		return store.NewWorkflowError("Create", record.ID, store.ErrAlreadyExists)
	}

	if !errors.Is(err, store.ErrNotFound) {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	err = s.write(record)
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(id)
	if err != nil {
		return nil, store.NewWorkflowError("Get", id, err)
	}

	return record, nil
}

func (s *Store) Transition(_ context.Context, id string, from, to models.Stage, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(id)
	if err != nil {
		return nil, store.NewWorkflowError("Transition", id, err)
	}

	err = store.ApplyTransition(record, from, to, mutations...)
	if err != nil {
		return nil, err
	}

	err = s.write(record)
	if err != nil {
		return nil, store.NewWorkflowError("Transition", id, err)
	}

	return record, nil
}

func (s *Store) Complete(_ context.Context, id string, status models.WorkflowStatus, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(id)
	if err != nil {
		return nil, store.NewWorkflowError("Complete", id, err)
	}

	err = store.ApplyCompletion(record, status, mutations...)
	if err != nil {
		return nil, err
	}

	err = s.write(record)
	if err != nil {
		return nil, store.NewWorkflowError("Complete", id, err)
	}

	return record, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.NewWorkflowError("Delete", id, store.ErrNotFound)
		}

		return store.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (s *Store) List(_ context.Context) ([]*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := os.DirFS(filepath.Join(s.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow records: %w", err)
	}

	records := make([]*models.WorkflowRecord, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(file, ".json")

		record, err := s.read(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow record %s: %w", id, err)
		}

		records = append(records, record)
	}

	return records, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

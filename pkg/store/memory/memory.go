// Package memory provides an in-memory workflow state store for tests and
// single-process development.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]*models.WorkflowRecord
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*models.WorkflowRecord),
	}
}

func (s *Store) Create(_ context.Context, record *models.WorkflowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return store.NewWorkflowError("Create", record.ID, store.ErrAlreadyExists)
	}

	s.records[record.ID] = clone(record)

	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, store.NewWorkflowError("Get", id, store.ErrNotFound)
	}

	return clone(record), nil
}

func (s *Store) Transition(_ context.Context, id string, from, to models.Stage, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, store.NewWorkflowError("Transition", id, store.ErrNotFound)
	}

	updated := clone(record)

	err := store.ApplyTransition(updated, from, to, mutations...)
	if err != nil {
		return nil, err
	}

	s.records[id] = updated

	return clone(updated), nil
}

func (s *Store) Complete(_ context.Context, id string, status models.WorkflowStatus, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, store.NewWorkflowError("Complete", id, store.ErrNotFound)
	}

	updated := clone(record)

	err := store.ApplyCompletion(updated, status, mutations...)
	if err != nil {
		return nil, err
	}

	s.records[id] = updated

	return clone(updated), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.NewWorkflowError("Delete", id, store.ErrNotFound)
	}

	delete(s.records, id)

	return nil
}

func (s *Store) List(_ context.Context) ([]*models.WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.WorkflowRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, clone(record))
	}

	return records, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

// clone round-trips through JSON so callers never share memory with the
// stored record.
func clone(record *models.WorkflowRecord) *models.WorkflowRecord {
	payload, err := json.Marshal(record)
	if err != nil {
		copied := *record

		return &copied
	}

	var copied models.WorkflowRecord
	if err := json.Unmarshal(payload, &copied); err != nil {
		copied = *record
	}

	return &copied
}

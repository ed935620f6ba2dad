// Package redis provides a Redis-backed workflow state store. Conditional
// transitions use optimistic WATCH transactions so racing masters on the same
// workflow id cannot both advance it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

const keyPrefix = "askgraph:workflow:"

type Store struct {
	client    goredis.UniversalClient
	retention time.Duration
}

// NewStore connects to the Redis URL. Records carry the retention window as
// key TTL, refreshed on every write; terminal records therefore age out even
// without the reaper.
func NewStore(url string, retention time.Duration) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Store{
		client:    goredis.NewClient(opts),
		retention: retention,
	}, nil
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Store) Create(ctx context.Context, record *models.WorkflowRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	created, err := s.client.SetNX(ctx, key(record.ID), payload, s.retention).Result()
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	if !created {
		return store.NewWorkflowError("Create", record.ID, store.ErrAlreadyExists)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	payload, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.NewWorkflowError("Get", id, store.ErrNotFound)
		}

		return nil, store.NewWorkflowError("Get", id, err)
	}

	var record models.WorkflowRecord

	err = json.Unmarshal(payload, &record)
	if err != nil {
		return nil, store.NewWorkflowError("Get", id, err)
	}

	return &record, nil
}

// update runs apply under a WATCH transaction, retrying on write conflicts.
func (s *Store) update(ctx context.Context, op, id string, apply func(record *models.WorkflowRecord) error) (*models.WorkflowRecord, error) {
	var updated *models.WorkflowRecord

	txn := func(tx *goredis.Tx) error {
		payload, err := tx.Get(ctx, key(id)).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return store.ErrNotFound
			}

			return err
		}

		var record models.WorkflowRecord

		err = json.Unmarshal(payload, &record)
		if err != nil {
			return err
		}

		err = apply(&record)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(&record)
		if err != nil {
			return err
		}

		updated = &record

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key(id), encoded, s.retention)

			return nil
		})

		return err
	}

	for range 3 {
		err := s.client.Watch(ctx, txn, key(id))
		if err == nil {
			return updated, nil
		}

		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}

		var workflowErr *store.WorkflowError
		if errors.As(err, &workflowErr) {
			return nil, err
		}

		return nil, store.NewWorkflowError(op, id, err)
	}

	return nil, store.NewWorkflowError(op, id, store.ErrStageConflict)
}

func (s *Store) Transition(ctx context.Context, id string, from, to models.Stage, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	return s.update(ctx, "Transition", id, func(record *models.WorkflowRecord) error {
		return store.ApplyTransition(record, from, to, mutations...)
	})
}

func (s *Store) Complete(ctx context.Context, id string, status models.WorkflowStatus, mutations ...store.Mutation) (*models.WorkflowRecord, error) {
	return s.update(ctx, "Complete", id, func(record *models.WorkflowRecord) error {
		return store.ApplyCompletion(record, status, mutations...)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return store.NewWorkflowError("Delete", id, err)
	}

	if removed == 0 {
		return store.NewWorkflowError("Delete", id, store.ErrNotFound)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]*models.WorkflowRecord, error) {
	records := make([]*models.WorkflowRecord, 0)

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to load workflow record %s: %w", iter.Val(), err)
		}

		var record models.WorkflowRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to decode workflow record %s: %w", iter.Val(), err)
		}

		records = append(records, &record)
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

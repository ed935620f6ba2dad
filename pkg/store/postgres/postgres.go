// Package postgres provides a PostgreSQL-backed workflow state store.
// Conditional transitions take a row lock with SELECT ... FOR UPDATE so racing
// masters on the same workflow id cannot both advance it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS workflows (
		id VARCHAR(255) PRIMARY KEY,
		status VARCHAR(50) NOT NULL,
		current_stage VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
	CREATE INDEX IF NOT EXISTS idx_workflows_updated_at ON workflows(updated_at);
`

type Store struct {
	db *sql.DB
}

// NewStore connects to the PostgreSQL URL and creates the workflows table if
// it does not exist yet.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = database.ExecContext(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows table: %w", err)
	}

	return &Store{db: database}, nil
}

func (s *Store) Create(ctx context.Context, record *models.WorkflowRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, status, current_stage, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, record.ID, record.Status, record.CurrentStage, payload, record.UpdatedAt)
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return store.NewWorkflowError("Create", record.ID, err)
	}

	if inserted == 0 {
		return store.NewWorkflowError("Create", record.ID, store.ErrAlreadyExists)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	var payload []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM workflows WHERE id = $1
	`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

// update runs apply against the current record while holding its row lock, so
// the stage check and the write are one atomic step.
func (s *Store) update(ctx context.Context, op, id string, apply func(record *models.WorkflowRecord) error) (*models.WorkflowRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.NewWorkflowError(op, id, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var payload []byte

	err = tx.QueryRowContext(ctx, `
		SELECT payload FROM workflows WHERE id = $1 FOR UPDATE
	`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewWorkflowError(op, id, store.ErrNotFound)
		}

		return nil, store.NewWorkflowError(op, id, err)
	}

	var record models.WorkflowRecord

	err = json.Unmarshal(payload, &record)
	if err != nil {
		return nil, store.NewWorkflowError(op, id, err)
	}

	err = apply(&record)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(&record)
	if err != nil {
		return nil, store.NewWorkflowError(op, id, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows
		SET status = $2, current_stage = $3, payload = $4, updated_at = $5
		WHERE id = $1
	`, id, record.Status, record.CurrentStage, encoded, record.UpdatedAt)
	if err != nil {
		return nil, store.NewWorkflowError(op, id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, store.NewWorkflowError(op, id, err)
	}

	return &record, nil
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
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workflows WHERE id = $1
	`, id)
	if err != nil {
		return store.NewWorkflowError("Delete", id, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return store.NewWorkflowError("Delete", id, err)
	}

	if removed == 0 {
		return store.NewWorkflowError("Delete", id, store.ErrNotFound)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]*models.WorkflowRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM workflows ORDER BY updated_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow records: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.WorkflowRecord, 0)

	for rows.Next() {
		var payload []byte

		err = rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow record: %w", err)
		}

		var record models.WorkflowRecord

		err = json.Unmarshal(payload, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to decode workflow record: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

package file

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/models"
	"github.com/askgraph/askgraph/pkg/store"
)

func newRecord(id string) *models.WorkflowRecord {
	return &models.WorkflowRecord{
		ID:           id,
		Question:     "Which river flows through Vienna?",
		CurrentStage: models.StageReceived,
		Status:       models.WorkflowStatusPending,
	}
}

func TestCreatePersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s := NewStore(root)
	require.NoError(t, s.Create(ctx, newRecord("wf-1")))

	reopened := NewStore(root)
	loaded, err := reopened.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Which river flows through Vienna?", loaded.Question)

	assert.FileExists(t, filepath.Join(root, "workflows", "wf-1.json"))
}

func TestCreateDuplicate(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("wf-1")))
	assert.ErrorIs(t, s.Create(ctx, newRecord("wf-1")), store.ErrAlreadyExists)
}

func TestTransitionConditions(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("wf-1")))

	updated, err := s.Transition(ctx, "wf-1", models.StageReceived, models.StageRefining)
	require.NoError(t, err)
	assert.Equal(t, models.StageRefining, updated.CurrentStage)

	_, err = s.Transition(ctx, "wf-1", models.StageReceived, models.StageRefining)
	assert.ErrorIs(t, err, store.ErrStageConflict)
}

func TestCompleteThenTransitionFails(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("wf-1")))

	_, err := s.Complete(ctx, "wf-1", models.WorkflowStatusFailed, func(r *models.WorkflowRecord) {
		r.ErrorDetail = "planning failed"
	})
	require.NoError(t, err)

	_, err = s.Transition(ctx, "wf-1", models.StageReceived, models.StageRefining)
	assert.ErrorIs(t, err, store.ErrTerminal)

	_, err = s.Complete(ctx, "wf-1", models.WorkflowStatusSucceeded)
	assert.ErrorIs(t, err, store.ErrTerminal)

	loaded, err := s.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, loaded.Status)
	assert.Equal(t, "planning failed", loaded.ErrorDetail)
}

func TestListAndDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newRecord("wf-1")))
	require.NoError(t, s.Create(ctx, newRecord("wf-2")))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, s.Delete(ctx, "wf-2"))

	_, err = s.Get(ctx, "wf-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

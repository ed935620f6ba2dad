package plancheck

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

func newChecker(t *testing.T) capability.Capability {
	t.Helper()

	checker, err := NewFactory()(nil)
	require.NoError(t, err)

	return checker
}

func verdictOf(t *testing.T, output capability.Output) models.ValidationVerdict {
	t.Helper()

	verdict, ok := output["verdict"].(models.ValidationVerdict)
	require.True(t, ok)

	return verdict
}

func TestValidPlanPasses(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{
			Steps: []models.PlanStep{
				{Description: "look up Vienna", Operation: models.OperationLookup, Entities: []string{"Vienna"}},
				{Description: "filter rivers", Operation: models.OperationFilter, DependsOn: []int{0}},
			},
		},
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.True(t, verdict.Valid)
	assert.Empty(t, verdict.Feedback)
}

func TestUnknownOperationIsRejected(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{
			Steps: []models.PlanStep{
				{Description: "teleport", Operation: models.OperationKind("teleport")},
			},
		},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.False(t, verdict.Valid)
	require.Len(t, verdict.Feedback, 1)
	assert.Contains(t, verdict.Feedback[0], "unknown operation")
}

func TestUnmappedEntityIsRejected(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{
			Steps: []models.PlanStep{
				{Description: "look up Atlantis", Operation: models.OperationLookup, Entities: []string{"Atlantis"}},
			},
		},
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.False(t, verdict.Valid)
	require.Len(t, verdict.Feedback, 1)
	assert.Contains(t, verdict.Feedback[0], "no ontology mapping")
}

func TestForwardDependencyIsRejected(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{
			Steps: []models.PlanStep{
				{Description: "aggregate", Operation: models.OperationAggregate, DependsOn: []int{1}},
				{Description: "look up", Operation: models.OperationLookup},
			},
		},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.False(t, verdict.Valid)
	assert.Contains(t, verdict.Feedback[0], "does not precede it")
}

func TestAllFindingsAreReportedTogether(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{
			Steps: []models.PlanStep{
				{Description: "bad op", Operation: models.OperationKind("teleport"), Entities: []string{"Atlantis"}},
				{Description: "bad dep", Operation: models.OperationFilter, DependsOn: []int{5}},
			},
		},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.False(t, verdict.Valid)
	assert.Len(t, verdict.Feedback, 3)
}

func TestEmptyPlanFailsStructuralValidation(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": models.Plan{},
	}, slog.Default())
	require.NoError(t, err)

	verdict := verdictOf(t, output)
	assert.False(t, verdict.Valid)
	assert.NotEmpty(t, verdict.Feedback)
}

func TestMissingPlanIsPermanentError(t *testing.T) {
	checker := newChecker(t)

	_, err := checker.Execute(context.Background(), capability.Input{}, slog.Default())
	require.Error(t, err)
	assert.Equal(t, capability.KindPermanent, capability.KindOf(err))
}

// Plans arriving over the task channel are JSON maps rather than typed
// structs; the checker accepts both.
func TestDecodedPlanMapIsAccepted(t *testing.T) {
	checker := newChecker(t)

	output, err := checker.Execute(context.Background(), capability.Input{
		"plan": map[string]any{
			"steps": []any{
				map[string]any{
					"description": "look up Vienna",
					"operation":   "lookup",
					"entities":    []any{"Vienna"},
				},
			},
		},
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
	}, slog.Default())
	require.NoError(t, err)

	assert.True(t, verdictOf(t, output).Valid)
}

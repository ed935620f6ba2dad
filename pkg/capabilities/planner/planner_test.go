package planner

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

func plan(t *testing.T, input capability.Input) models.Plan {
	t.Helper()

	planner, err := NewFactory()(nil)
	require.NoError(t, err)

	output, err := planner.Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)

	result, ok := output["plan"].(models.Plan)
	require.True(t, ok)

	return result
}

func TestSimpleQuestionGetsSingleStep(t *testing.T) {
	result := plan(t, capability.Input{
		"question": "Which river flows through Vienna?",
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
	})

	assert.Equal(t, models.ComplexitySimple, result.Complexity)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, models.OperationLookup, result.Steps[0].Operation)
}

func TestTwoEntitiesGetModeratePlan(t *testing.T) {
	result := plan(t, capability.Input{
		"question": "Is Vienna on the Danube?",
		"mappings": map[string]any{
			"Vienna": "http://example.org/Vienna",
			"Danube": "http://example.org/Danube",
		},
	})

	assert.Equal(t, models.ComplexityModerate, result.Complexity)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, []int{0}, result.Steps[1].DependsOn)
}

func TestAggregationQuestionGetsComplexPlan(t *testing.T) {
	result := plan(t, capability.Input{
		"question": "How many rivers flow through Vienna?",
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
	})

	assert.Equal(t, models.ComplexityComplex, result.Complexity)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, models.OperationAggregate, result.Steps[2].Operation)
}

func TestFeedbackProducesReplacementPlan(t *testing.T) {
	result := plan(t, capability.Input{
		"question": "Which river flows through Vienna?",
		"mappings": map[string]any{"Vienna": "http://example.org/Vienna"},
		"feedback": []string{"step 1: entity \"Atlantis\" has no ontology mapping"},
		"plan":     map[string]any{"steps": []any{}},
	})

	assert.NotEmpty(t, result.Steps)
	assert.Contains(t, result.Reasoning, "replanned")
}

func TestEmptyQuestionIsPermanentError(t *testing.T) {
	planner, err := NewFactory()(nil)
	require.NoError(t, err)

	_, err = planner.Execute(context.Background(), capability.Input{}, slog.Default())
	require.Error(t, err)
	assert.Equal(t, capability.KindPermanent, capability.KindOf(err))
}

package construct

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

func build(t *testing.T, input capability.Input) string {
	t.Helper()

	constructor, err := NewFactory()(nil)
	require.NoError(t, err)

	output, err := constructor.Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)

	return output["query"].(string)
}

func lookupPlan() models.Plan {
	return models.Plan{
		Complexity: models.ComplexitySimple,
		Steps: []models.PlanStep{
			{
				Description: "look up the entity",
				Operation:   models.OperationLookup,
				Complexity:  models.ComplexitySimple,
				Entities:    []string{"Vienna"},
			},
		},
	}
}

func TestQueryBindsEveryMappedIRI(t *testing.T) {
	query := build(t, capability.Input{
		"plan": lookupPlan(),
		"mappings": map[string]any{
			"Vienna": "http://example.org/resource/Vienna",
			"Danube": "http://example.org/resource/Danube",
		},
	})

	assert.Contains(t, query, "SELECT DISTINCT ?subject ?property ?value")
	assert.Contains(t, query, "<http://example.org/resource/Vienna>")
	assert.Contains(t, query, "<http://example.org/resource/Danube>")
	assert.Contains(t, query, "LIMIT 100")
}

func TestIRIOrderIsDeterministic(t *testing.T) {
	input := capability.Input{
		"plan": lookupPlan(),
		"mappings": map[string]any{
			"Vienna": "http://example.org/resource/Vienna",
			"Danube": "http://example.org/resource/Danube",
		},
	}

	first := build(t, input)
	second := build(t, input)

	assert.Equal(t, first, second)
	// Danube sorts before Vienna, so it gets the lower VALUES slot.
	assert.Less(t, strings.Index(first, "Danube"), strings.Index(first, "Vienna"))
}

func TestAggregatePlansGetTheLargerLimit(t *testing.T) {
	plan := lookupPlan()
	plan.Steps = append(plan.Steps, models.PlanStep{
		Description: "aggregate the matches",
		Operation:   models.OperationAggregate,
		Complexity:  models.ComplexityModerate,
		DependsOn:   []int{0},
	})

	query := build(t, capability.Input{
		"plan":     plan,
		"mappings": map[string]any{"Vienna": "http://example.org/resource/Vienna"},
	})

	assert.Contains(t, query, "LIMIT 1000")
	assert.NotContains(t, query, "LIMIT 100\n")
}

func TestJSONDecodedPlanIsAccepted(t *testing.T) {
	query := build(t, capability.Input{
		"plan": map[string]any{
			"complexity": "simple",
			"steps": []any{
				map[string]any{
					"description": "look up the entity",
					"operation":   "lookup",
					"complexity":  "simple",
				},
			},
		},
		"mappings": map[string]any{"Vienna": "http://example.org/resource/Vienna"},
	})

	assert.Contains(t, query, "<http://example.org/resource/Vienna>")
}

func TestMissingPlanIsPermanent(t *testing.T) {
	constructor, err := NewFactory()(nil)
	require.NoError(t, err)

	_, err = constructor.Execute(context.Background(), capability.Input{}, slog.Default())
	require.Error(t, err)
	assert.Equal(t, capability.KindPermanent, capability.KindOf(err))
}

func TestEmptyPlanIsPermanent(t *testing.T) {
	constructor, err := NewFactory()(nil)
	require.NoError(t, err)

	_, err = constructor.Execute(context.Background(), capability.Input{
		"plan": models.Plan{},
	}, slog.Default())
	require.Error(t, err)
	assert.Equal(t, capability.KindPermanent, capability.KindOf(err))
}

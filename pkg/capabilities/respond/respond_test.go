package respond

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/capability"
)

func respond(t *testing.T, input capability.Input) string {
	t.Helper()

	responder, err := NewFactory()(nil)
	require.NoError(t, err)

	output, err := responder.Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)

	return output["response"].(string)
}

func TestSingleValueAnswer(t *testing.T) {
	response := respond(t, capability.Input{
		"question": "Which river flows through Vienna?",
		"results":  []map[string]string{{"river": "Danube"}},
	})

	assert.Equal(t, "The answer is Danube.", response)
}

func TestEmptyResultsProduceApology(t *testing.T) {
	response := respond(t, capability.Input{
		"question": "Which river flows through Atlantis?",
		"results":  []map[string]string{},
	})

	assert.Contains(t, response, "No results were found")
	assert.Contains(t, response, "Atlantis")
}

func TestMultipleRowsAreListed(t *testing.T) {
	response := respond(t, capability.Input{
		"question": "Which rivers flow through Austria?",
		"results": []map[string]string{
			{"river": "Danube"},
			{"river": "Inn"},
			{"river": "Mur"},
		},
	})

	assert.Contains(t, response, "Found 3 results")
	assert.Contains(t, response, "river: Danube")
	assert.Contains(t, response, "river: Mur")
}

func TestLongResultListsAreTruncated(t *testing.T) {
	rows := make([]map[string]string, 8)
	for i := range rows {
		rows[i] = map[string]string{"n": string(rune('a' + i))}
	}

	response := respond(t, capability.Input{"results": rows})

	assert.Contains(t, response, "and 3 more")
}

// Results arriving over the task channel decode as []any of maps.
func TestDecodedResultsAreAccepted(t *testing.T) {
	response := respond(t, capability.Input{
		"results": []any{
			map[string]any{"river": "Danube"},
		},
	})

	assert.Equal(t, "The answer is Danube.", response)
}

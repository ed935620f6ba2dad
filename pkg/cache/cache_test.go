package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askgraph/askgraph/pkg/models"
)

func TestKeyNormalizesQuestion(t *testing.T) {
	assert.Equal(t,
		Key("Which river flows through Vienna?", nil),
		Key("  which RIVER flows through vienna?  ", nil),
	)

	assert.NotEqual(t,
		Key("Which river flows through Vienna?", nil),
		Key("Which river flows through Budapest?", nil),
	)
}

func TestKeyIncludesContext(t *testing.T) {
	turns := []models.ConversationTurn{{Role: "user", Text: "Tell me about Vienna."}}

	assert.NotEqual(t,
		Key("what about its population?", nil),
		Key("what about its population?", turns),
	)
}

func TestKeyPreservesContextOrder(t *testing.T) {
	forward := []models.ConversationTurn{
		{Role: "user", Text: "Tell me about Vienna."},
		{Role: "assistant", Text: "Vienna is the capital of Austria."},
	}
	reversed := []models.ConversationTurn{
		{Role: "assistant", Text: "Vienna is the capital of Austria."},
		{Role: "user", Text: "Tell me about Vienna."},
	}

	assert.Equal(t,
		Key("what about its population?", forward),
		Key("what about its population?", forward),
	)

	// A conversation is an ordered sequence; reordered turns are a different
	// conversation and must not share a cache entry.
	assert.NotEqual(t,
		Key("what about its population?", forward),
		Key("what about its population?", reversed),
	)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	key := Key("Which river flows through Vienna?", nil)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, &models.WorkflowResult{
		WorkflowID: "wf-1",
		Response:   "The answer is Danube.",
		Status:     models.WorkflowStatusSucceeded,
	})

	cached, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.True(t, cached.FromCache)
	assert.Equal(t, "The answer is Danube.", cached.Response)
}

func TestFailuresAreNeverCached(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	key := Key("Which river flows through Atlantis?", nil)

	c.Set(ctx, key, &models.WorkflowResult{
		WorkflowID: "wf-1",
		Status:     models.WorkflowStatusFailed,
	})

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestExpiredEntriesAreMisses(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	key := Key("Which river flows through Vienna?", nil)
	c.Set(ctx, key, &models.WorkflowResult{Status: models.WorkflowStatusSucceeded})

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

// Package cache stores final answers keyed by normalized question so repeat
// questions skip the pipeline entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/askgraph/askgraph/pkg/models"
)

// AnswerCache maps a question (plus conversation context) to a previously
// computed result.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*models.WorkflowResult, bool)
	Set(ctx context.Context, key string, result *models.WorkflowResult)
}

// Key derives a stable cache key from a question and its context. The
// question is case-folded and whitespace-trimmed; context turns keep their
// order, since a conversation is an ordered sequence and reordered turns are
// a different conversation.
func Key(question string, context []models.ConversationTurn) string {
	normalized := strings.ToLower(strings.TrimSpace(question))

	if len(context) > 0 {
		parts := make([]string, 0, len(context))
		for _, turn := range context {
			parts = append(parts, turn.Role+":"+turn.Text)
		}

		normalized += "||" + strings.Join(parts, "||")
	}

	sum := sha256.Sum256([]byte(normalized))

	return "cache:question:" + hex.EncodeToString(sum[:])
}

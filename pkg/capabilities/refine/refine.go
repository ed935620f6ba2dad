// Package refine provides the reference question-refinement capability. It
// normalizes whitespace and folds the latest conversation turn into
// standalone follow-up questions.
package refine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
)

type Refiner struct{}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		return &Refiner{}, nil
	}
}

func (r *Refiner) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	question := strings.Join(strings.Fields(input.String("question")), " ")
	if question == "" {
		return nil, capability.NewPermanent("question is empty", nil)
	}

	refined := question

	// Follow-ups like "what about its population?" lean on the previous
	// user turn; prefix it so downstream stages see a standalone question.
	if isFollowUp(question) {
		if previous := lastUserTurn(input); previous != "" {
			refined = previous + " " + question
		}
	}

	logger.Debug("Question refined", "refined", refined)

	return capability.Output{"refined_question": refined}, nil
}

func isFollowUp(question string) bool {
	lowered := strings.ToLower(question)

	for _, marker := range []string{"what about", "and its", "how about", "same for"} {
		if strings.HasPrefix(lowered, marker) {
			return true
		}
	}

	return false
}

func lastUserTurn(input capability.Input) string {
	turns, _ := input["context"].([]map[string]any)

	for i := len(turns) - 1; i >= 0; i-- {
		role, _ := turns[i]["role"].(string)
		if role != "user" {
			continue
		}

		text, _ := turns[i]["text"].(string)

		return text
	}

	return ""
}

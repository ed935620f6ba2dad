// Package entities provides the reference entity-recognition capability: a
// gazetteer match over configured entity names plus a capitalized-phrase
// heuristic. Production deployments replace it with a learned recognizer
// behind the same contract.
package entities

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/askgraph/askgraph/pkg/capability"
)

type Recognizer struct {
	gazetteer []string
}

func NewFactory() capability.Factory {
	return func(config map[string]any) (capability.Capability, error) {
		recognizer := &Recognizer{}

		if known, ok := config["gazetteer"].([]string); ok {
			recognizer.gazetteer = known
		}

		return recognizer, nil
	}
}

func (r *Recognizer) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	question := input.String("question")
	if question == "" {
		return nil, capability.NewPermanent("question is empty", nil)
	}

	found := make([]string, 0)
	seen := make(map[string]struct{})

	lowered := strings.ToLower(question)
	for _, name := range r.gazetteer {
		if strings.Contains(lowered, strings.ToLower(name)) {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				found = append(found, name)
			}
		}
	}

	for _, phrase := range capitalizedPhrases(question) {
		if _, ok := seen[phrase]; !ok {
			seen[phrase] = struct{}{}
			found = append(found, phrase)
		}
	}

	logger.Debug("Entities recognized", "count", len(found))

	return capability.Output{"entities": found}, nil
}

// capitalizedPhrases collects runs of capitalized words, skipping the
// sentence-initial word.
func capitalizedPhrases(question string) []string {
	words := strings.Fields(strings.TrimRight(question, "?.!"))
	phrases := make([]string, 0)

	var current []string

	for i, word := range words {
		trimmed := strings.Trim(word, ",;:'\"()")

		if i > 0 && trimmed != "" && unicode.IsUpper(rune(trimmed[0])) {
			current = append(current, trimmed)

			continue
		}

		if len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
			current = nil
		}
	}

	if len(current) > 0 {
		phrases = append(phrases, strings.Join(current, " "))
	}

	return phrases
}

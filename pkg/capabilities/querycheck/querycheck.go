// Package querycheck provides the reference query-validation capability. It
// checks well-formedness of a constructed SPARQL query without contacting an
// endpoint: balanced braces, a known query form, and that every IRI the query
// selects over came out of the ontology mapping stage.
package querycheck

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

var iriPattern = regexp.MustCompile(`<([^><\s]+)>`)

type Checker struct{}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		return &Checker{}, nil
	}
}

func (c *Checker) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	query := input.String("query")
	if query == "" {
		return nil, capability.NewPermanent("query is empty", nil)
	}

	feedback := checkForm(query)
	feedback = append(feedback, checkIRIs(query, input.Map("mappings"))...)

	if len(feedback) > 0 {
		logger.Debug("Query rejected", "findings", len(feedback))
	}

	return capability.Output{
		"verdict": models.ValidationVerdict{
			Valid:    len(feedback) == 0,
			Feedback: feedback,
		},
	}, nil
}

func checkForm(query string) []string {
	var feedback []string

	trimmed := strings.TrimSpace(strings.ToUpper(query))

	known := false
	for _, form := range []string{"SELECT", "ASK", "CONSTRUCT", "DESCRIBE"} {
		if strings.HasPrefix(trimmed, form) {
			known = true
			break
		}
	}

	if !known {
		feedback = append(feedback, "query does not start with a known query form")
	}

	if strings.Count(query, "{") != strings.Count(query, "}") {
		feedback = append(feedback, "query has unbalanced braces")
	}

	if !strings.Contains(trimmed, "WHERE") && strings.HasPrefix(trimmed, "SELECT") {
		feedback = append(feedback, "select query has no WHERE clause")
	}

	return feedback
}

// checkIRIs verifies the query only references IRIs produced by the mapping
// stage. A query inventing IRIs would run but silently answer the wrong
// question.
func checkIRIs(query string, mappings map[string]any) []string {
	known := make(map[string]bool, len(mappings))
	for _, value := range mappings {
		if iri, ok := value.(string); ok {
			known[iri] = true
		}
	}

	var feedback []string

	for _, match := range iriPattern.FindAllStringSubmatch(query, -1) {
		if !known[match[1]] {
			feedback = append(feedback, fmt.Sprintf("query references IRI %q which has no ontology mapping", match[1]))
		}
	}

	return feedback
}

// Package construct provides the reference query-construction capability. It
// renders a validated plan and its ontology mappings into a SPARQL query.
package construct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

type Constructor struct{}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		return &Constructor{}, nil
	}
}

func (c *Constructor) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	raw, ok := input["plan"]
	if !ok {
		return nil, capability.NewPermanent("plan is missing", nil)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, capability.NewPermanent("plan is not serializable", err)
	}

	var plan models.Plan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil, capability.NewPermanent("decoding plan", err)
	}

	if len(plan.Steps) == 0 {
		return nil, capability.NewPermanent("plan has no steps", nil)
	}

	iris := irisFor(input.Map("mappings"))
	query := render(plan, iris)

	logger.Debug("Constructed query", "steps", len(plan.Steps), "bytes", len(query))

	return capability.Output{"query": query}, nil
}

// irisFor flattens the mapping artifact to entity name -> IRI, sorted for a
// deterministic query body.
func irisFor(mappings map[string]any) []mappedIRI {
	iris := make([]mappedIRI, 0, len(mappings))

	for name, value := range mappings {
		if iri, ok := value.(string); ok && iri != "" {
			iris = append(iris, mappedIRI{Name: name, IRI: iri})
		}
	}

	sort.Slice(iris, func(i, j int) bool { return iris[i].Name < iris[j].Name })

	return iris
}

type mappedIRI struct {
	Name string
	IRI  string
}

func render(plan models.Plan, iris []mappedIRI) string {
	var b strings.Builder

	b.WriteString("SELECT DISTINCT ?subject ?property ?value\nWHERE {\n")

	for i, iri := range iris {
		fmt.Fprintf(&b, "  VALUES ?entity%d { <%s> }\n", i, iri.IRI)
	}

	b.WriteString("  ?subject ?property ?value .\n")

	for i := range iris {
		fmt.Fprintf(&b, "  FILTER(?subject = ?entity%d || ?value = ?entity%d)\n", i, i)
	}

	b.WriteString("}\n")

	if aggregates(plan) {
		b.WriteString("LIMIT 1000\n")
	} else {
		b.WriteString("LIMIT 100\n")
	}

	return b.String()
}

func aggregates(plan models.Plan) bool {
	for _, step := range plan.Steps {
		if step.Operation == models.OperationAggregate {
			return true
		}
	}

	return false
}

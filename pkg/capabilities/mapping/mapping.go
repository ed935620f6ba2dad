// Package mapping provides the reference ontology-mapping capability backed
// by a configured term-to-IRI table. Unmapped entities are reported, not
// invented; deciding what to do with them belongs to plan validation.
package mapping

import (
	"context"
	"log/slog"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
)

type Mapper struct {
	terms map[string]string
}

func NewFactory() capability.Factory {
	return func(config map[string]any) (capability.Capability, error) {
		mapper := &Mapper{terms: make(map[string]string)}

		if table, ok := config["terms"].(map[string]string); ok {
			for term, iri := range table {
				mapper.terms[strings.ToLower(term)] = iri
			}
		}

		return mapper, nil
	}
}

func (m *Mapper) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	names := input.StringSlice("entities")

	mapped := make(map[string]any, len(names))
	unmapped := make([]string, 0)

	for _, name := range names {
		iri, ok := m.terms[strings.ToLower(name)]
		if !ok {
			unmapped = append(unmapped, name)

			continue
		}

		mapped[name] = iri
	}

	if len(unmapped) > 0 {
		logger.Debug("Entities without ontology mapping", "unmapped", unmapped)
	}

	return capability.Output{
		"mappings": mapped,
		"unmapped": unmapped,
	}, nil
}

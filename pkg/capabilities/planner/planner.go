// Package planner provides the reference plan-formulation capability. It
// sizes a plan from the question's complexity and, when validation feedback
// is present, produces a replacement plan rather than patching the old one.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

type Planner struct{}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		return &Planner{}, nil
	}
}

func (p *Planner) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	question := input.String("question")
	if question == "" {
		return nil, capability.NewPermanent("question is empty", nil)
	}

	mappings := input.Map("mappings")
	feedback := input.StringSlice("feedback")

	entities := make([]string, 0, len(mappings))
	for name := range mappings {
		entities = append(entities, name)
	}

	complexity := assessComplexity(question, entities)
	plan := buildPlan(question, entities, complexity)

	if len(feedback) > 0 {
		// Repair: replace the plan wholesale, restricted to what the
		// ontology actually maps.
		plan.Reasoning = fmt.Sprintf("replanned after %d validation findings", len(feedback))
		logger.Debug("Producing replacement plan", "findings", len(feedback))
	}

	return capability.Output{"plan": plan}, nil
}

func assessComplexity(question string, entities []string) models.ComplexityLevel {
	lowered := strings.ToLower(question)

	for _, marker := range []string{"duration", "average", "how many", "compare", "difference", "total"} {
		if strings.Contains(lowered, marker) {
			return models.ComplexityComplex
		}
	}

	if len(entities) > 1 {
		return models.ComplexityModerate
	}

	return models.ComplexitySimple
}

func buildPlan(question string, entities []string, complexity models.ComplexityLevel) models.Plan {
	switch complexity {
	case models.ComplexityComplex:
		return models.Plan{
			Complexity: complexity,
			Steps: []models.PlanStep{
				{
					Description: "look up the referenced entities",
					Operation:   models.OperationLookup,
					Complexity:  models.ComplexitySimple,
					Entities:    entities,
				},
				{
					Description: "filter the relevant properties",
					Operation:   models.OperationFilter,
					Complexity:  models.ComplexityModerate,
					Entities:    entities,
					DependsOn:   []int{0},
				},
				{
					Description: "aggregate into the requested value",
					Operation:   models.OperationAggregate,
					Complexity:  models.ComplexityComplex,
					DependsOn:   []int{1},
				},
			},
		}
	case models.ComplexityModerate:
		return models.Plan{
			Complexity: complexity,
			Steps: []models.PlanStep{
				{
					Description: "look up the referenced entities",
					Operation:   models.OperationLookup,
					Complexity:  models.ComplexitySimple,
					Entities:    entities,
				},
				{
					Description: "filter results to answer: " + question,
					Operation:   models.OperationFilter,
					Complexity:  models.ComplexityModerate,
					DependsOn:   []int{0},
				},
			},
		}
	default:
		return models.Plan{
			Complexity: complexity,
			Steps: []models.PlanStep{
				{
					Description: "look up: " + question,
					Operation:   models.OperationLookup,
					Complexity:  models.ComplexitySimple,
					Entities:    entities,
				},
			},
		}
	}
}

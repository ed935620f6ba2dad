// Package plancheck provides the reference plan-validation capability. A plan
// passes structural validation against a JSON schema first, then a consistency
// checklist over its steps. All findings for a plan are reported together.
package plancheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/xeipuuv/gojsonschema"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

const planSchema = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["description", "operation"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "operation": {"type": "string"},
          "entities": {"type": "array", "items": {"type": "string"}},
          "depends_on": {"type": "array", "items": {"type": "integer"}}
        }
      }
    }
  }
}`

type Checker struct {
	schema *gojsonschema.Schema
}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
		if err != nil {
			return nil, fmt.Errorf("compiling plan schema: %w", err)
		}

		return &Checker{schema: schema}, nil
	}
}

func (c *Checker) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	raw, ok := input["plan"]
	if !ok {
		return nil, capability.NewPermanent("plan is missing", nil)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, capability.NewPermanent("plan is not serializable", err)
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(encoded))
	if err != nil {
		return nil, capability.NewPermanent("validating plan structure", err)
	}

	var feedback []string
	if !result.Valid() {
		for _, desc := range result.Errors() {
			feedback = append(feedback, fmt.Sprintf("plan structure: %s", desc.String()))
		}

		return verdictOutput(feedback), nil
	}

	var plan models.Plan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil, capability.NewPermanent("decoding plan", err)
	}

	mapped := mappedEntities(input.Map("mappings"))
	feedback = append(feedback, checkSteps(plan, mapped)...)

	if len(feedback) > 0 {
		logger.Debug("Plan rejected", "findings", len(feedback))
	}

	return verdictOutput(feedback), nil
}

func verdictOutput(feedback []string) capability.Output {
	return capability.Output{
		"verdict": models.ValidationVerdict{
			Valid:    len(feedback) == 0,
			Feedback: feedback,
		},
	}
}

func mappedEntities(mappings map[string]any) map[string]bool {
	known := make(map[string]bool, len(mappings))
	for name := range mappings {
		known[name] = true
	}

	return known
}

// checkSteps runs the consistency checklist: every operation must be a
// recognized kind, every referenced entity must be mapped, and every
// dependency must point at an earlier step.
func checkSteps(plan models.Plan, mapped map[string]bool) []string {
	var feedback []string

	for i, step := range plan.Steps {
		if !slices.Contains(models.KnownOperationKinds, step.Operation) {
			feedback = append(feedback, fmt.Sprintf("step %d: unknown operation %q", i+1, step.Operation))
		}

		for _, entity := range step.Entities {
			if !mapped[entity] {
				feedback = append(feedback, fmt.Sprintf("step %d: entity %q has no ontology mapping", i+1, entity))
			}
		}

		for _, dep := range step.DependsOn {
			if dep < 0 || dep >= i {
				feedback = append(feedback, fmt.Sprintf("step %d: references result of step %d which does not precede it", i+1, dep+1))
			}
		}
	}

	return feedback
}

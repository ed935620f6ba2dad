package master

import (
	"context"
	"time"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

// ConstructionMaster owns the query-construction sub-workflow: ontology
// mapping, plan formulation, the bounded validate/repair loop, query
// construction, and constructed-query validation.
type ConstructionMaster struct {
	*DomainMaster

	maxRepairAttempts int
}

func NewConstructionMaster(base *DomainMaster, maxRepairAttempts int) *ConstructionMaster {
	if maxRepairAttempts < 1 {
		maxRepairAttempts = 1
	}

	return &ConstructionMaster{
		DomainMaster:      base,
		maxRepairAttempts: maxRepairAttempts,
	}
}

func (m *ConstructionMaster) Run(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	artifact, err := m.runSubStage(ctx, workflowID, artifact, observer, SubStage{
		Stage:      models.StageMappingOntology,
		Capability: CapabilityOntologyMapping,
		BuildInput: func(artifact Artifact) capability.Input {
			return capability.Input{
				ArtifactQuestion: artifact[ArtifactRefinedQuestion],
				ArtifactEntities: artifact[ArtifactEntities],
			}
		},
	})
	if err != nil {
		return nil, err
	}

	artifact, err = m.planWithRepair(ctx, workflowID, artifact, observer)
	if err != nil {
		return nil, err
	}

	artifact, err = m.runSubStage(ctx, workflowID, artifact, observer, SubStage{
		Stage:      models.StageConstructing,
		Capability: CapabilityQueryConstruction,
		BuildInput: func(artifact Artifact) capability.Input {
			return capability.Input{
				ArtifactQuestion: artifact[ArtifactRefinedQuestion],
				ArtifactPlan:     artifact[ArtifactPlan],
				ArtifactMappings: artifact[ArtifactMappings],
			}
		},
	})
	if err != nil {
		return nil, err
	}

	return m.validateQuery(ctx, workflowID, artifact, observer)
}

// planWithRepair runs Planning then Validating, taking the Repairing
// back-edge while the verdict is invalid and the repair budget lasts. The
// budget bounds validation passes: a budget of 2 allows the initial
// validation plus one repair-and-revalidate cycle before the domain fails.
// The plan is replaced wholesale on every repair; it is never patched in
// place. Feedback from every failed cycle accumulates and is surfaced
// verbatim when the budget runs out.
func (m *ConstructionMaster) planWithRepair(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	artifact, err := m.runSubStage(ctx, workflowID, artifact, observer, SubStage{
		Stage:      models.StagePlanning,
		Capability: CapabilityPlanFormulation,
		BuildInput: func(artifact Artifact) capability.Input {
			return capability.Input{
				ArtifactQuestion: artifact[ArtifactRefinedQuestion],
				ArtifactMappings: artifact[ArtifactMappings],
			}
		},
	})
	if err != nil {
		return nil, err
	}

	feedback := make([]string, 0)

	for validations := 1; ; validations++ {
		artifact, err = m.runSubStage(ctx, workflowID, artifact, observer, SubStage{
			Stage:      models.StageValidating,
			Capability: CapabilityPlanValidation,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactPlan:     artifact[ArtifactPlan],
					ArtifactMappings: artifact[ArtifactMappings],
				}
			},
		})
		if err != nil {
			return nil, err
		}

		verdict := verdictFrom(artifact[ArtifactVerdict])
		if verdict.Valid {
			return artifact, nil
		}

		feedback = append(feedback, verdict.Feedback...)

		if validations >= m.maxRepairAttempts {
			return nil, &DomainError{
				Domain: m.domain,
				Stage:  models.StageValidating,
				Err:    &capability.ValidationFailure{Feedback: feedback},
			}
		}

		m.metrics.RepairCycle(ctx)

		artifact, err = m.runSubStage(ctx, workflowID, artifact, observer, SubStage{
			Stage:      models.StageRepairing,
			Capability: CapabilityPlanFormulation,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactQuestion: artifact[ArtifactRefinedQuestion],
					ArtifactMappings: artifact[ArtifactMappings],
					ArtifactPlan:     artifact[ArtifactPlan],
					"feedback":       verdict.Feedback,
				}
			},
		})
		if err != nil {
			return nil, err
		}
	}
}

// validateQuery checks the constructed query once. There is no repair
// back-edge here; an invalid constructed query fails the domain with the
// validator's feedback.
func (m *ConstructionMaster) validateQuery(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	err := observer.StageStarted(ctx, workflowID, models.StageValidatingQuery)
	if err != nil {
		return nil, &DomainError{Domain: m.domain, Stage: models.StageValidatingQuery, Err: err}
	}

	started := time.Now()

	output, err := m.Execute(ctx, workflowID, CapabilityQueryValidation, capability.Input{
		ArtifactQuery:    artifact[ArtifactQuery],
		ArtifactMappings: artifact[ArtifactMappings],
	})
	if err != nil {
		return nil, &DomainError{Domain: m.domain, Stage: models.StageValidatingQuery, Err: err}
	}

	verdict := verdictFrom(output[ArtifactVerdict])
	if !verdict.Valid {
		return nil, &DomainError{
			Domain: m.domain,
			Stage:  models.StageValidatingQuery,
			Err:    &capability.ValidationFailure{Feedback: verdict.Feedback},
		}
	}

	err = observer.StageCompleted(ctx, workflowID, models.StageValidatingQuery, output, started)
	if err != nil {
		return nil, &DomainError{Domain: m.domain, Stage: models.StageValidatingQuery, Err: err}
	}

	m.metrics.StageCompleted(ctx, string(m.domain), string(models.StageValidatingQuery), time.Since(started))

	return fold(artifact, output), nil
}

// verdictFrom tolerates both in-process typed verdicts and JSON-decoded maps
// arriving over the task channel.
func verdictFrom(value any) models.ValidationVerdict {
	switch verdict := value.(type) {
	case models.ValidationVerdict:
		return verdict
	case *models.ValidationVerdict:
		return *verdict
	case map[string]any:
		valid, _ := verdict["valid"].(bool)
		parsed := models.ValidationVerdict{Valid: valid}

		switch feedback := verdict["feedback"].(type) {
		case []string:
			parsed.Feedback = feedback
		case []any:
			for _, item := range feedback {
				if s, ok := item.(string); ok {
					parsed.Feedback = append(parsed.Feedback, s)
				}
			}
		}

		return parsed
	default:
		return models.ValidationVerdict{Valid: false, Feedback: []string{"validator returned no verdict"}}
	}
}

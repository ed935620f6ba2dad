package master

import (
	"context"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

// Well-known capability names the pipeline is wired against. Deployments
// register implementations for these names; the masters never see anything
// beyond the capability contract.
const (
	CapabilityQueryRefinement    = "query_refinement"
	CapabilityEntityRecognition  = "entity_recognition"
	CapabilityOntologyMapping    = "ontology_mapping"
	CapabilityPlanFormulation    = "plan_formulation"
	CapabilityPlanValidation     = "plan_validation"
	CapabilityQueryConstruction  = "query_construction"
	CapabilityQueryValidation    = "query_validation"
	CapabilityQueryExecution     = "query_execution"
	CapabilityResponseGeneration = "response_generation"
)

// Artifact keys shared between stages.
const (
	ArtifactQuestion        = "question"
	ArtifactContext         = "context"
	ArtifactRefinedQuestion = "refined_question"
	ArtifactEntities        = "entities"
	ArtifactMappings        = "mappings"
	ArtifactPlan            = "plan"
	ArtifactVerdict         = "verdict"
	ArtifactQuery           = "query"
	ArtifactResults         = "results"
	ArtifactResponse        = "response"
)

// UnderstandingMaster owns the language-understanding sub-workflow: question
// refinement followed by entity recognition.
type UnderstandingMaster struct {
	*DomainMaster
}

func NewUnderstandingMaster(base *DomainMaster) *UnderstandingMaster {
	return &UnderstandingMaster{DomainMaster: base}
}

func (m *UnderstandingMaster) Run(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	return m.runSequence(ctx, workflowID, artifact, observer, []SubStage{
		{
			Stage:      models.StageRefining,
			Capability: CapabilityQueryRefinement,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactQuestion: artifact[ArtifactQuestion],
					ArtifactContext:  artifact[ArtifactContext],
				}
			},
			// A failed refinement falls back to the raw question rather than
			// failing the whole workflow.
			Fallback: func(artifact Artifact, _ error) (map[string]any, bool) {
				return map[string]any{
					ArtifactRefinedQuestion: artifact[ArtifactQuestion],
				}, true
			},
		},
		{
			Stage:      models.StageExtractingEntities,
			Capability: CapabilityEntityRecognition,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactQuestion: artifact[ArtifactRefinedQuestion],
				}
			},
		},
	})
}

package master

import (
	"context"

	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/models"
)

// ResponseMaster owns the response-generation sub-workflow: executing the
// constructed query and rendering the natural language answer.
type ResponseMaster struct {
	*DomainMaster
}

func NewResponseMaster(base *DomainMaster) *ResponseMaster {
	return &ResponseMaster{DomainMaster: base}
}

func (m *ResponseMaster) Run(ctx context.Context, workflowID string, artifact Artifact, observer Observer) (Artifact, error) {
	return m.runSequence(ctx, workflowID, artifact, observer, []SubStage{
		{
			Stage:      models.StageExecuting,
			Capability: CapabilityQueryExecution,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactQuery: artifact[ArtifactQuery],
				}
			},
		},
		{
			Stage:      models.StageGeneratingResponse,
			Capability: CapabilityResponseGeneration,
			BuildInput: func(artifact Artifact) capability.Input {
				return capability.Input{
					ArtifactQuestion: artifact[ArtifactQuestion],
					ArtifactResults:  artifact[ArtifactResults],
				}
			},
		},
	})
}

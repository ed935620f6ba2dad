// Package models defines the core domain models for question-answering workflows.
package models

// Stage identifies one step of the question-answering pipeline.
type Stage string

const (
	StageReceived           Stage = "received"
	StageRefining           Stage = "refining"
	StageExtractingEntities Stage = "extracting_entities"
	StageMappingOntology    Stage = "mapping_ontology"
	StagePlanning           Stage = "planning"
	StageValidating         Stage = "validating"
	StageRepairing          Stage = "repairing"
	StageConstructing       Stage = "constructing"
	StageValidatingQuery    Stage = "validating_query"
	StageExecuting          Stage = "executing"
	StageGeneratingResponse Stage = "generating_response"
)

// Domain groups pipeline stages under the master that owns them.
type Domain string

const (
	DomainUnderstanding Domain = "understanding"
	DomainConstruction  Domain = "construction"
	DomainResponse      Domain = "response"
)

// PipelineStages is the declared stage order for a successful run. The
// validate/repair back-edge (StageRepairing) is the only permitted deviation.
var PipelineStages = []Stage{
	StageReceived,
	StageRefining,
	StageExtractingEntities,
	StageMappingOntology,
	StagePlanning,
	StageValidating,
	StageConstructing,
	StageValidatingQuery,
	StageExecuting,
	StageGeneratingResponse,
}

var stageDomains = map[Stage]Domain{
	StageRefining:           DomainUnderstanding,
	StageExtractingEntities: DomainUnderstanding,
	StageMappingOntology:    DomainConstruction,
	StagePlanning:           DomainConstruction,
	StageValidating:         DomainConstruction,
	StageRepairing:          DomainConstruction,
	StageConstructing:       DomainConstruction,
	StageValidatingQuery:    DomainConstruction,
	StageExecuting:          DomainResponse,
	StageGeneratingResponse: DomainResponse,
}

// DomainOf returns the domain master that owns a stage. StageReceived belongs
// to the global master and has no domain.
func DomainOf(stage Stage) (Domain, bool) {
	domain, ok := stageDomains[stage]

	return domain, ok
}

// NextStage returns the stage following s in the declared pipeline order, or
// false when s is the last stage. StageRepairing always advances back to
// StageValidating.
func NextStage(s Stage) (Stage, bool) {
	if s == StageRepairing {
		return StageValidating, true
	}

	for i, stage := range PipelineStages {
		if stage == s {
			if i+1 < len(PipelineStages) {
				return PipelineStages[i+1], true
			}

			return "", false
		}
	}

	return "", false
}

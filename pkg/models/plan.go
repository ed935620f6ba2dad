package models

// OperationKind classifies what a plan step does against the knowledge graph.
type OperationKind string

const (
	OperationLookup    OperationKind = "lookup"
	OperationFilter    OperationKind = "filter"
	OperationAggregate OperationKind = "aggregate"
	OperationTransform OperationKind = "transform"
)

// KnownOperationKinds lists every operation kind the validator recognizes.
var KnownOperationKinds = []OperationKind{
	OperationLookup,
	OperationFilter,
	OperationAggregate,
	OperationTransform,
}

// ComplexityLevel sizes a question for the planner.
type ComplexityLevel string

const (
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityModerate ComplexityLevel = "moderate"
	ComplexityComplex  ComplexityLevel = "complex"
)

// PlanStep is one intended query-construction operation. DependsOn lists the
// zero-based indices of earlier steps whose results this step consumes.
type PlanStep struct {
	Description string          `json:"description" validate:"required"`
	Operation   OperationKind   `json:"operation"   validate:"required"`
	Complexity  ComplexityLevel `json:"complexity"  validate:"required"`
	Entities    []string        `json:"entities,omitempty"`
	DependsOn   []int           `json:"depends_on,omitempty"`
}

// Plan is an ordered sequence of construction steps. A plan is immutable once
// validated; repair replaces the whole plan, it never patches steps in place.
type Plan struct {
	Steps      []PlanStep      `json:"steps"`
	Complexity ComplexityLevel `json:"complexity"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// ValidationVerdict is the pass/fail judgment on a plan or constructed query,
// with per-step feedback. Feedback drives the repair decision and, when the
// repair budget is exhausted, is surfaced to the caller verbatim.
type ValidationVerdict struct {
	Valid    bool     `json:"valid"`
	Feedback []string `json:"feedback,omitempty"`
}

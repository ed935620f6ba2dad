// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/askgraph/askgraph/pkg/capabilities/construct"
	"github.com/askgraph/askgraph/pkg/capabilities/entities"
	"github.com/askgraph/askgraph/pkg/capabilities/execquery"
	"github.com/askgraph/askgraph/pkg/capabilities/mapping"
	"github.com/askgraph/askgraph/pkg/capabilities/plancheck"
	"github.com/askgraph/askgraph/pkg/capabilities/planner"
	"github.com/askgraph/askgraph/pkg/capabilities/querycheck"
	"github.com/askgraph/askgraph/pkg/capabilities/refine"
	"github.com/askgraph/askgraph/pkg/capabilities/respond"
	"github.com/askgraph/askgraph/pkg/capability"
	"github.com/askgraph/askgraph/pkg/master"
	"github.com/askgraph/askgraph/pkg/registry"
)

// CapabilityConfig carries deployment settings for the native capabilities.
type CapabilityConfig struct {
	// Gazetteer lists entity names the recognizer should match.
	Gazetteer []string

	// OntologyTerms maps entity names to graph IRIs.
	OntologyTerms map[string]string

	// SPARQLEndpoint is the query endpoint for the execution capability.
	SPARQLEndpoint string
}

// NewRegistry builds a registry with the native capabilities assigned to
// their domain pools.
func NewRegistry(logger *slog.Logger, cfg CapabilityConfig) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerUnderstanding(reg, cfg)
	registerConstruction(reg, cfg)
	registerResponse(reg, cfg)

	return reg
}

func registerUnderstanding(reg *registry.Registry, cfg CapabilityConfig) {
	reg.Register(master.CapabilityQueryRefinement, "understanding", refine.NewFactory())
	reg.Register(master.CapabilityEntityRecognition, "understanding",
		withConfig(entities.NewFactory(), map[string]any{"gazetteer": cfg.Gazetteer}))
}

func registerConstruction(reg *registry.Registry, cfg CapabilityConfig) {
	reg.Register(master.CapabilityOntologyMapping, "construction",
		withConfig(mapping.NewFactory(), map[string]any{"terms": cfg.OntologyTerms}))
	reg.Register(master.CapabilityPlanFormulation, "construction", planner.NewFactory())
	reg.Register(master.CapabilityPlanValidation, "construction", plancheck.NewFactory())
	reg.Register(master.CapabilityQueryConstruction, "construction", construct.NewFactory())
	reg.Register(master.CapabilityQueryValidation, "construction", querycheck.NewFactory())
}

func registerResponse(reg *registry.Registry, cfg CapabilityConfig) {
	reg.Register(master.CapabilityQueryExecution, "response",
		withConfig(execquery.NewFactory(), map[string]any{"endpoint": cfg.SPARQLEndpoint}))
	reg.Register(master.CapabilityResponseGeneration, "response", respond.NewFactory())
}

// withConfig binds deployment settings into a factory, merged under any
// overrides the pool passes at creation time.
func withConfig(factory capability.Factory, bound map[string]any) capability.Factory {
	return func(config map[string]any) (capability.Capability, error) {
		merged := make(map[string]any, len(bound)+len(config))

		for key, value := range bound {
			merged[key] = value
		}

		for key, value := range config {
			merged[key] = value
		}

		return factory(merged)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

type capabilityConfigFile struct {
	Gazetteer     []string          `json:"gazetteer"`
	OntologyTerms map[string]string `json:"ontology_terms"`
}

// LoadCapabilityConfig reads the knowledge-graph settings file: the entity
// gazetteer and the ontology term table. A missing path yields an empty
// config, which leaves the recognizer and mapper with nothing to match.
func LoadCapabilityConfig(path, sparqlEndpoint string) (CapabilityConfig, error) {
	cfg := CapabilityConfig{SPARQLEndpoint: sparqlEndpoint}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read ontology file: %w", err)
	}

	var parsed capabilityConfigFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("failed to parse ontology file: %w", err)
	}

	cfg.Gazetteer = parsed.Gazetteer
	cfg.OntologyTerms = parsed.OntologyTerms

	return cfg, nil
}

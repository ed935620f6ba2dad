// Package execquery provides the reference query-execution capability. It
// posts a SPARQL query to a configured endpoint and decodes the standard
// application/sparql-results+json response into row maps.
package execquery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/askgraph/askgraph/pkg/capability"
)

const defaultRequestTimeout = 30 * time.Second

type Executor struct {
	endpoint string
	client   *http.Client
}

func NewFactory() capability.Factory {
	return func(config map[string]any) (capability.Capability, error) {
		endpoint, _ := config["endpoint"].(string)
		if endpoint == "" {
			return nil, fmt.Errorf("query execution requires an endpoint")
		}

		timeout := defaultRequestTimeout
		if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}

		return &Executor{
			endpoint: endpoint,
			client:   &http.Client{Timeout: timeout},
		}, nil
	}
}

func (e *Executor) Execute(ctx context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	query := input.String("query")
	if query == "" {
		return nil, capability.NewPermanent("query is empty", nil)
	}

	form := url.Values{"query": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, capability.NewPermanent("building endpoint request", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, capability.NewTransient("querying endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, capability.NewTransient("reading endpoint response", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, capability.NewTransient(fmt.Sprintf("endpoint returned status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return nil, capability.NewPermanent(fmt.Sprintf("endpoint rejected query with status %d", resp.StatusCode), nil)
	}

	rows, err := decodeResults(body)
	if err != nil {
		return nil, capability.NewPermanent("decoding endpoint response", err)
	}

	logger.Debug("Query executed", "rows", len(rows), "status", resp.StatusCode)

	return capability.Output{"results": rows}, nil
}

// sparqlResponse is the W3C SPARQL 1.1 JSON results format.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

func decodeResults(body []byte) ([]map[string]string, error) {
	var decoded sparqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}

	if decoded.Boolean != nil {
		return []map[string]string{{"boolean": fmt.Sprintf("%t", *decoded.Boolean)}}, nil
	}

	rows := make([]map[string]string, 0, len(decoded.Results.Bindings))

	for _, binding := range decoded.Results.Bindings {
		row := make(map[string]string, len(binding))
		for variable, cell := range binding {
			row[variable] = cell.Value
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Package respond provides the reference response-generation capability. It
// renders query results into a short natural-language answer.
package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/askgraph/askgraph/pkg/capability"
)

const maxListedRows = 5

type Responder struct{}

func NewFactory() capability.Factory {
	return func(_ map[string]any) (capability.Capability, error) {
		return &Responder{}, nil
	}
}

func (r *Responder) Execute(_ context.Context, input capability.Input, logger *slog.Logger) (capability.Output, error) {
	question := input.String("question")

	rows, err := rowsFrom(input["results"])
	if err != nil {
		return nil, capability.NewPermanent("results are not decodable", err)
	}

	response := render(question, rows)

	logger.Debug("Response generated", "rows", len(rows), "bytes", len(response))

	return capability.Output{"response": response}, nil
}

func rowsFrom(value any) ([]map[string]string, error) {
	if typed, ok := value.([]map[string]string); ok {
		return typed, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	if err := json.Unmarshal(encoded, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

func render(question string, rows []map[string]string) string {
	if len(rows) == 0 {
		if question != "" {
			return fmt.Sprintf("No results were found for %q.", question)
		}

		return "No results were found."
	}

	if len(rows) == 1 && len(rows[0]) == 1 {
		for _, value := range rows[0] {
			return fmt.Sprintf("The answer is %s.", value)
		}
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Found %d results", len(rows))
	if question != "" {
		fmt.Fprintf(&b, " for %q", question)
	}
	b.WriteString(":\n")

	for i, row := range rows {
		if i == maxListedRows {
			fmt.Fprintf(&b, "... and %d more.\n", len(rows)-maxListedRows)
			break
		}

		b.WriteString("- ")
		b.WriteString(describeRow(row))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func describeRow(row map[string]string) string {
	variables := make([]string, 0, len(row))
	for variable := range row {
		variables = append(variables, variable)
	}

	sort.Strings(variables)

	parts := make([]string, 0, len(variables))
	for _, variable := range variables {
		parts = append(parts, fmt.Sprintf("%s: %s", variable, row[variable]))
	}

	return strings.Join(parts, ", ")
}

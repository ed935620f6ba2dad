// Package capability defines the contract every processing stage implements
// and the error taxonomy the orchestration core enforces around it.
package capability

import (
	"context"
	"log/slog"
)

// Input is the payload handed to a capability execution.
type Input map[string]any

// Output is the artifact a capability execution produces.
type Output map[string]any

// Capability is the uniform interface for a single-purpose processing unit
// (entity extraction, plan formulation, query execution, ...). The core never
// inspects a capability's internals; it only sequences, times out, and
// retries executions.
type Capability interface {
	Execute(ctx context.Context, input Input, logger *slog.Logger) (Output, error)
}

// Func adapts a plain function to the Capability interface.
type Func func(ctx context.Context, input Input, logger *slog.Logger) (Output, error)

func (f Func) Execute(ctx context.Context, input Input, logger *slog.Logger) (Output, error) {
	return f(ctx, input, logger)
}

// Factory builds a capability instance from pool-level configuration.
type Factory func(config map[string]any) (Capability, error)

// String reads a string field from the input, defaulting to empty.
func (in Input) String(key string) string {
	value, _ := in[key].(string)

	return value
}

// StringSlice reads a list-of-strings field, tolerating []any payloads that
// arrive through JSON decoding.
func (in Input) StringSlice(key string) []string {
	switch value := in[key].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))

		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// Map reads a nested object field, tolerating JSON-decoded payloads.
func (in Input) Map(key string) map[string]any {
	value, _ := in[key].(map[string]any)

	return value
}

// Package registry maps capability names to the pools that serve them.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/askgraph/askgraph/pkg/capability"
)

// Registration binds a capability name to its pool and factory.
type Registration struct {
	Capability string
	Pool       string
	Factory    capability.Factory
}

// Registry is the typed capability registry built at startup and passed by
// reference into masters and pools. It is read-mostly after construction and
// safe for concurrent dispatch without external locking.
type Registry struct {
	logger        *slog.Logger
	registrations map[string]Registration
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		registrations: make(map[string]Registration),
	}
}

// Register binds a capability name to a pool and factory. Registering the
// same name twice replaces the earlier binding.
func (r *Registry) Register(capabilityName, pool string, factory capability.Factory) {
	r.registrations[capabilityName] = Registration{
		Capability: capabilityName,
		Pool:       pool,
		Factory:    factory,
	}
}

// PoolFor returns the pool serving a capability.
func (r *Registry) PoolFor(capabilityName string) (string, error) {
	registration, ok := r.registrations[capabilityName]
	if !ok {
		return "", fmt.Errorf("capability '%s' not registered", capabilityName)
	}

	return registration.Pool, nil
}

// Create instantiates a capability by name.
func (r *Registry) Create(capabilityName string, config map[string]any) (capability.Capability, error) {
	registration, ok := r.registrations[capabilityName]
	if !ok {
		return nil, fmt.Errorf("capability '%s' not registered", capabilityName)
	}

	return registration.Factory(config)
}

// CapabilitiesIn lists the capability names served by a pool.
func (r *Registry) CapabilitiesIn(pool string) []string {
	names := make([]string, 0, len(r.registrations))

	for name, registration := range r.registrations {
		if registration.Pool == pool {
			names = append(names, name)
		}
	}

	return names
}

// Pools lists every pool with at least one registration.
func (r *Registry) Pools() []string {
	seen := make(map[string]struct{})
	pools := make([]string, 0)

	for _, registration := range r.registrations {
		if _, ok := seen[registration.Pool]; ok {
			continue
		}

		seen[registration.Pool] = struct{}{}
		pools = append(pools, registration.Pool)
	}

	return pools
}

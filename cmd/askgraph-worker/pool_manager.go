package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/askgraph/askgraph/pkg/pool"
	"github.com/askgraph/askgraph/pkg/registry"
	"github.com/askgraph/askgraph/pkg/taskbus"
)

// PoolManager runs one slave pool consumer per served pool and blocks until
// the process is signalled.
type PoolManager struct {
	id       string
	logger   *slog.Logger
	bus      taskbus.TaskBus
	registry *registry.Registry
	pools    []string
}

func NewPoolManager(
	id string,
	bus taskbus.TaskBus,
	reg *registry.Registry,
	logger *slog.Logger,
	pools []string,
) *PoolManager {
	return &PoolManager{
		id:       id,
		logger:   logger.With("module", "pool_manager", "worker_id", id),
		bus:      bus,
		registry: reg,
		pools:    pools,
	}
}

func (m *PoolManager) Start(ctx context.Context) error {
	served := m.pools
	if len(served) == 0 {
		served = m.registry.Pools()
	}

	for _, name := range served {
		if !slices.Contains(m.registry.Pools(), name) {
			return fmt.Errorf("no capabilities registered for pool %q", name)
		}

		p := pool.NewPool(name, m.id, m.bus, m.registry, m.logger)

		err := p.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start pool %q: %w", name, err)
		}
	}

	m.logger.InfoContext(ctx, "Worker started successfully", "pools", served)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		m.logger.InfoContext(ctx, "Shutting down worker...")
	case <-ctx.Done():
	}

	return nil
}

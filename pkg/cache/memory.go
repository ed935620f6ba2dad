package cache

import (
	"context"
	"sync"
	"time"

	"github.com/askgraph/askgraph/pkg/models"
)

type entry struct {
	result    models.WorkflowResult
	expiresAt time.Time
}

// Memory is a TTL-bound in-process answer cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*models.WorkflowResult, bool) {
	m.mu.RLock()
	cached, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(cached.expiresAt) {
		return nil, false
	}

	result := cached.result
	result.FromCache = true

	return &result, true
}

func (m *Memory) Set(_ context.Context, key string, result *models.WorkflowResult) {
	// Failures are never cached: a retry may succeed.
	if result.Status != models.WorkflowStatusSucceeded {
		return
	}

	m.mu.Lock()
	m.entries[key] = entry{
		result:    *result,
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
}

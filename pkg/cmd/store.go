package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askgraph/askgraph/pkg/store"
	"github.com/askgraph/askgraph/pkg/store/file"
	"github.com/askgraph/askgraph/pkg/store/memory"
	"github.com/askgraph/askgraph/pkg/store/postgres"
	"github.com/askgraph/askgraph/pkg/store/redis"
)

var supportedStoreProviders = []string{"file", "redis", "memory", "postgres", "postgresql"}

// NewStore creates a workflow state store from a database URL. Unrecognized
// schemes fall back to file persistence rooted at the URL path.
func NewStore(databaseURL string, retention time.Duration) store.Store {
	switch parseStoreProvider(databaseURL) {
	case "redis":
		s, err := redis.NewStore(databaseURL, retention)
		if err != nil {
			panic(fmt.Errorf("failed to create redis store: %w", err))
		}

		return s
	case "postgres", "postgresql":
		s, err := postgres.NewStore(context.Background(), databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres store: %w", err))
		}

		return s
	case "memory":
		return memory.NewStore()
	default:
		return file.NewStore(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parseStoreProvider(databaseURL string) string {
	provider, _, _ := strings.Cut(databaseURL, "://")

	for _, supported := range supportedStoreProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

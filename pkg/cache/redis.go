package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/askgraph/askgraph/pkg/models"
)

// Redis is a shared answer cache for multi-process deployments.
type Redis struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(url string, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return &Redis{
		client: goredis.NewClient(opts),
		ttl:    ttl,
		logger: logger.With("module", "answer_cache"),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*models.WorkflowResult, bool) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var result models.WorkflowResult
	if err := json.Unmarshal(payload, &result); err != nil {
		r.logger.Warn("Failed to decode cached answer", "key", key, "error", err)

		return nil, false
	}

	result.FromCache = true

	return &result, true
}

func (r *Redis) Set(ctx context.Context, key string, result *models.WorkflowResult) {
	if result.Status != models.WorkflowStatusSucceeded {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	err = r.client.Set(ctx, key, payload, r.ttl).Err()
	if err != nil {
		r.logger.Warn("Failed to cache answer", "key", key, "error", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitledger/internal/models"
)

const keyPrefix = "splitledger:summary:"

// Redis is a summary cache shared by every server instance. Failures are
// logged and treated as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis connects to addr and checks the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, userID string) (models.GroupSummary, bool) {
	data, err := r.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "Summary cache read failed", "user_id", userID, "error", err)
		}
		return models.GroupSummary{}, false
	}
	var summary models.GroupSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		r.logger.WarnContext(ctx, "Summary cache entry unreadable", "user_id", userID, "error", err)
		return models.GroupSummary{}, false
	}
	return summary, true
}

func (r *Redis) Set(ctx context.Context, userID string, summary models.GroupSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		r.logger.WarnContext(ctx, "Summary cache encode failed", "user_id", userID, "error", err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+userID, data, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "Summary cache write failed", "user_id", userID, "error", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyPrefix + id
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.WarnContext(ctx, "Summary cache invalidation failed", "users", len(userIDs), "error", err)
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "gamehub_actions"

// ActionLog receives every accepted room action.
type ActionLog interface {
	Publish(ctx context.Context, action models.RoomAction) error
}

// Connect returns a client for addr after a successful ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisActionLog pushes actions as JSON onto a Redis list.
type RedisActionLog struct {
	rdb   *redis.Client
	queue string
}

func NewRedisActionLog(rdb *redis.Client, queue string) *RedisActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisActionLog{rdb: rdb, queue: queue}
}

// Publish serializes the action and RPUSHes it. This does not block the
// caller beyond one network round trip.
func (l *RedisActionLog) Publish(ctx context.Context, action models.RoomAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomAction: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// NoopActionLog drops every action. It is used when Redis is unavailable.
type NoopActionLog struct{}

func (NoopActionLog) Publish(context.Context, models.RoomAction) error { return nil }

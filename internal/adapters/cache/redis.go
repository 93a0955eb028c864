package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/brightcast/ppv-access-service/internal/domain"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisEventCache caches event attributes with a short TTL so the access and
// checkout paths don't hammer the content store.
type RedisEventCache struct {
	client *redis.Client
}

func NewRedisEventCache(client *redis.Client) *RedisEventCache {
	return &RedisEventCache{client: client}
}

func eventKey(eventID string) string { return "ppv:event:" + eventID }

func (c *RedisEventCache) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	raw, err := c.client.Get(ctx, eventKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var event domain.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("decode cached event %s: %w", eventID, err)
	}
	return &event, nil
}

func (c *RedisEventCache) Put(ctx context.Context, event domain.Event, ttl time.Duration) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	return c.client.Set(ctx, eventKey(event.EventID), raw, ttl).Err()
}

func (c *RedisEventCache) Invalidate(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, eventKey(eventID)).Err()
}

// Package cache holds the Redis read-through cache for notification preferences.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"conversation-service/internal/models"
)

// presenceField marks a cached entry so users with no stored preferences still hit the cache.
const presenceField = "_cached"

// PreferenceCache stores each user's explicit preferences as a Redis hash.
type PreferenceCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewPreferenceCache wraps an existing client.
func NewPreferenceCache(client *redis.Client, ttl time.Duration) *PreferenceCache {
	return &PreferenceCache{client: client, ttl: ttl, prefix: "prefs:"}
}

func (c *PreferenceCache) key(userID string) string {
	return c.prefix + userID
}

// Get returns the cached preferences. The boolean is false on a cache miss.
func (c *PreferenceCache) Get(ctx context.Context, userID string) (models.Preferences, bool, error) {
	values, err := c.client.HGetAll(ctx, c.key(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("read cached preferences: %w", err)
	}
	if _, ok := values[presenceField]; !ok {
		return nil, false, nil
	}

	prefs := make(models.Preferences, len(values)-1)
	for field, value := range values {
		if field == presenceField {
			continue
		}
		prefs[models.NotificationKind(field)] = value == "1"
	}
	return prefs, true, nil
}

// Set replaces the cached entry for userID.
func (c *PreferenceCache) Set(ctx context.Context, userID string, prefs models.Preferences) error {
	fields := make([]any, 0, 2*len(prefs)+2)
	fields = append(fields, presenceField, "1")
	for kind, enabled := range prefs {
		value := "0"
		if enabled {
			value = "1"
		}
		fields = append(fields, string(kind), value)
	}

	key := c.key(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields...)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache preferences: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry so the next read goes to the store.
func (c *PreferenceCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate preferences: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache is the durable cache tier backed by Redis. TTL handling is
// delegated to Redis itself; remaining lifetime is read back with PTTL so
// memory-tier backfills inherit the right expiry.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Entry
}

func NewRedisCache(client *redis.Client, logger *logrus.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger.WithField("component", "redis_cache"),
	}
}

func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, fmt.Errorf("redis get: %w", err)
	}

	remaining, err := r.client.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		// key exists but TTL was unreadable, assume a short remainder
		remaining = time.Minute
	}
	return data, remaining, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// DeletePrefix removes every key under prefix using SCAN so large
// namespaces do not block the server the way KEYS would.
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	match := prefix + ":*"
	if prefix == "" {
		match = "*"
	}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete batch: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisCache) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.logger.WithError(err).Debug("Redis ping failed")
		return false
	}
	return true
}

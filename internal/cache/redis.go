package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripmart/marketplace-backend/pkg/booking"
)

const (
	keyPrefix  = "availability"
	defaultTTL = 30 * time.Second
	scanBatch  = 100
)

// RedisCache is the Redis backed AvailabilityCache
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache whose entries expire after ttl
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, q booking.AvailabilityQuery) (*booking.AvailabilityResult, error) {
	data, err := r.client.Get(ctx, cacheKey(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result booking.AvailabilityResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal availability failed: %w", err)
	}
	return &result, nil
}

func (r *RedisCache) Set(ctx context.Context, q booking.AvailabilityQuery, result *booking.AvailabilityResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal availability failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(q), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// InvalidateService drops every cached window of one service
func (r *RedisCache) InvalidateService(ctx context.Context, serviceType booking.ServiceType, serviceID string) error {
	pattern := servicePrefix(serviceType, serviceID) + "*"

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Ping checks the connection, used by the health endpoint
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func servicePrefix(serviceType booking.ServiceType, serviceID string) string {
	return fmt.Sprintf("%s:%s:%s:", keyPrefix, serviceType, serviceID)
}

func cacheKey(q booking.AvailabilityQuery) string {
	return fmt.Sprintf("%s%s:%s", servicePrefix(q.ServiceType, q.ServiceID), q.Start, q.End)
}

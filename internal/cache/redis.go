package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/divvyhq/divvy/internal/models"
)

// Ensure RedisCache implements Cache
var _ Cache = (*RedisCache)(nil)

// RedisCache stores balance reports in Redis as JSON with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func balancesKey(groupID string) string {
	return "divvy:balances:" + groupID
}

// GetGroupBalances returns the cached report or ErrMiss.
func (c *RedisCache) GetGroupBalances(ctx context.Context, groupID string) (*models.GroupBalances, error) {
	data, err := c.client.Get(ctx, balancesKey(groupID)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached balances: %w", err)
	}

	balances := &models.GroupBalances{}
	if err := json.Unmarshal(data, balances); err != nil {
		return nil, fmt.Errorf("failed to decode cached balances: %w", err)
	}
	return balances, nil
}

// SetGroupBalances stores the report under the cache TTL.
func (c *RedisCache) SetGroupBalances(ctx context.Context, groupID string, balances *models.GroupBalances) error {
	data, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("failed to encode balances: %w", err)
	}
	if err := c.client.Set(ctx, balancesKey(groupID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache balances: %w", err)
	}
	return nil
}

// InvalidateGroup drops the group's entry.
func (c *RedisCache) InvalidateGroup(ctx context.Context, groupID string) error {
	if err := c.client.Del(ctx, balancesKey(groupID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate balances: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

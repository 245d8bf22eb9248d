package rules

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/healthrisk/internal/logger"
)

// DefaultRedisKey is the key the active rules list is stored under.
const DefaultRedisKey = "healthrisk:rules:active"

const redisOpTimeout = 2 * time.Second

// RedisRulesCache shares the active rules list between processes through
// Redis. Redis failures degrade to cache misses.
type RedisRulesCache struct {
	client *redis.Client
	key    string
	config CacheConfig
}

// NewRedisRulesCache creates a cache on an existing client
func NewRedisRulesCache(client *redis.Client, key string, config CacheConfig) *RedisRulesCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRulesCache{
		client: client,
		key:    key,
		config: config,
	}
}

// Get returns the cached rules, or nil on a miss or Redis error
func (c *RedisRulesCache) Get() []*Rule {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logger.Warn("failed to read rules from Redis", "key", c.key, "error", err)
		return nil
	}

	var rules []*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Warn("failed to decode cached rules", "key", c.key, "error", err)
		return nil
	}
	return rules
}

// Set stores rules in Redis with the configured TTL
func (c *RedisRulesCache) Set(rules []*Rule) {
	if rules == nil {
		rules = []*Rule{}
	}

	data, err := json.Marshal(rules)
	if err != nil {
		logger.Warn("failed to encode rules for Redis", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		logger.Warn("failed to write rules to Redis", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached list
func (c *RedisRulesCache) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logger.Warn("failed to invalidate rules in Redis", "key", c.key, "error", err)
	}
}

// IsValid returns true if the cached list exists
func (c *RedisRulesCache) IsValid() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key).Result()
	if err != nil {
		logger.Warn("failed to check rules in Redis", "key", c.key, "error", err)
		return false
	}
	return n == 1
}

package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache persists drafts in Redis under a fixed namespace, each
// entry with a TTL so abandoned drafts age out on their own.
type RedisCache struct {
	client redis.UniversalClient
	ns     string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a RedisCache. ttl bounds how long an abandoned
// draft survives; zero means 7 days.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{client: client, ns: "draft", ttl: ttl, logger: logger}
}

func (c *RedisCache) key(slot Slot) string {
	return c.ns + ":" + slot.storageKey()
}

// Save writes the value. Marshal or storage failures are logged and
// dropped.
func (c *RedisCache) Save(ctx context.Context, slot Slot, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("draft marshal failed", zap.String("slot", slot.storageKey()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(slot), buf, c.ttl).Err(); err != nil {
		c.logger.Warn("draft save failed", zap.String("slot", slot.storageKey()), zap.Error(err))
	}
}

// Load reads the value into dst, reporting whether one was present.
func (c *RedisCache) Load(ctx context.Context, slot Slot, dst any) bool {
	buf, err := c.client.Get(ctx, c.key(slot)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("draft load failed", zap.String("slot", slot.storageKey()), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		c.logger.Warn("draft unmarshal failed", zap.String("slot", slot.storageKey()), zap.Error(err))
		return false
	}
	return true
}

// Clear removes the entry.
func (c *RedisCache) Clear(ctx context.Context, slot Slot) {
	if err := c.client.Del(ctx, c.key(slot)).Err(); err != nil {
		c.logger.Warn("draft clear failed", zap.String("slot", slot.storageKey()), zap.Error(err))
	}
}

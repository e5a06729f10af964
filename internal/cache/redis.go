package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/arena-signals/internal/config"
)

// countTTL is refreshed on every read so active receivers stay warm.
const countTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

// FromClient wraps an existing client.
func FromClient(c *redis.Client) *RedisCache {
	return &RedisCache{Client: c}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForIncomingCount is the counter of signals waiting for a receiver in one arena.
func (c *RedisCache) KeyForIncomingCount(arenaID, receiverID string) string {
	return fmt.Sprintf("signals:incoming:%s:%s", arenaID, receiverID)
}

// GetIncomingCount reports a cached count. ok is false on a miss.
func (c *RedisCache) GetIncomingCount(ctx context.Context, arenaID, receiverID string) (int64, bool, error) {
	key := c.KeyForIncomingCount(arenaID, receiverID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt entry, treat as a miss
		return 0, false, nil
	}
	_ = c.Client.Expire(ctx, key, countTTL).Err()
	return n, true, nil
}

func (c *RedisCache) SetIncomingCount(ctx context.Context, arenaID, receiverID string, n int64) error {
	return c.Client.Set(ctx, c.KeyForIncomingCount(arenaID, receiverID), n, countTTL).Err()
}

// InvalidateIncomingCount drops the counters of every given receiver.
func (c *RedisCache) InvalidateIncomingCount(ctx context.Context, arenaID string, receiverIDs ...string) error {
	if len(receiverIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(receiverIDs))
	for _, id := range receiverIDs {
		keys = append(keys, c.KeyForIncomingCount(arenaID, id))
	}
	return c.Client.Del(ctx, keys...).Err()
}

package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client interface {
	Enqueue(queue string, payload []byte) error
	BlockingDequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	QueueLength(queue string) (int64, error)
	BlacklistToken(tokenHash string, ttl time.Duration) error
	IsTokenBlacklisted(tokenHash string) (bool, error)
	IncrWithTTL(key string, window time.Duration) (int64, error)
	SetChart(orgID int64, data []byte, ttl time.Duration) error
	GetChart(orgID int64) ([]byte, error)
	InvalidateChart(orgID int64) error
	Ping() error
	Close() error
}

// ErrNoData is returned by BlockingDequeue when the timeout elapses.
var ErrNoData = redis.Nil

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisClient() (*RedisCache, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opts.DB = db
		}
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

// Enqueue pushes a payload onto the right side of the list (FIFO queue).
func (c *RedisCache) Enqueue(queue string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.RPush(ctx, queue, payload).Err()
}

// BlockingDequeue pops the oldest payload, blocking up to timeout.
// Returns ErrNoData when the timeout elapses with no payload.
func (c *RedisCache) BlockingDequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BLPop(ctx, timeout, queue).Result()
	if err != nil {
		return nil, err
	}
	// BLPOP returns [key, value]
	if len(res) < 2 {
		return nil, ErrNoData
	}
	return []byte(res[1]), nil
}

func (c *RedisCache) QueueLength(queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.LLen(ctx, queue).Result()
}

func (c *RedisCache) BlacklistToken(tokenHash string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "auth:blacklist:" + tokenHash
	if ttl <= 0 {
		ttl = time.Hour
	}
	return c.rdb.Set(ctx, key, "1", ttl).Err()
}

func (c *RedisCache) IsTokenBlacklisted(tokenHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "auth:blacklist:" + tokenHash
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrWithTTL increments a counter, setting the expiry on first increment.
func (c *RedisCache) IncrWithTTL(key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = c.rdb.Expire(ctx, key, window).Err()
	}
	return count, nil
}

func chartKey(orgID int64) string {
	return fmt.Sprintf("org:chart:%d", orgID)
}

func (c *RedisCache) SetChart(orgID int64, data []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Set(ctx, chartKey(orgID), data, ttl).Err()
}

func (c *RedisCache) GetChart(orgID int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Get(ctx, chartKey(orgID)).Bytes()
}

func (c *RedisCache) InvalidateChart(orgID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Del(ctx, chartKey(orgID)).Err()
}

func (c *RedisCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

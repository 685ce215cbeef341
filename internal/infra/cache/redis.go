package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gnsd/internal/domain"
)

const scoreKeyPrefix = "gnsd:trust:"

type RedisCache struct {
	client *redis.Client
}

var _ domain.TrustScoreCache = (*RedisCache)(nil)

func NewRedis(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, identityID string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, scoreKeyPrefix+identityID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.client.Del(ctx, scoreKeyPrefix+identityID)
		return 0, false, nil
	}
	return score, true, nil
}

func (c *RedisCache) Put(ctx context.Context, identityID string, score float64, ttl time.Duration) error {
	value := strconv.FormatFloat(score, 'f', -1, 64)
	return c.client.Set(ctx, scoreKeyPrefix+identityID, value, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, identityID string) error {
	return c.client.Del(ctx, scoreKeyPrefix+identityID).Err()
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gnsd/internal/domain"
)

// keyspace namespaces limiter counters away from the trust-score cache
// entries that may share the same Redis database.
const keyspace = "gnsd:rl"

type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// counterScript bumps the window counter and arms its expiry on first
// use. The expiry is cleanup only; the window boundary is encoded in
// the bucket key itself.
var counterScript = redis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return used
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{client: client, now: now}, nil
}

// Allow counts the request against the aligned window containing now.
// Windows align to multiples of span so every daemon sharing the same
// Redis agrees on the reset boundary without coordination.
func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	spanMillis := span.Milliseconds()
	if spanMillis <= 0 {
		spanMillis = 1000
	}
	bucket, resetMillis := alignedWindow(r.now().UnixMilli(), spanMillis)
	bucketKey := fmt.Sprintf("%s:%s:%d", keyspace, key, bucket)

	used, err := counterScript.Run(ctx, r.client, []string{bucketKey}, spanMillis).Int64()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   used <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(resetMillis).UTC(),
	}, nil
}

// alignedWindow places nowMillis into its span-aligned bucket and
// returns the bucket ordinal with the millisecond timestamp at which
// the bucket rolls over.
func alignedWindow(nowMillis, spanMillis int64) (bucket, resetMillis int64) {
	bucket = nowMillis / spanMillis
	return bucket, (bucket + 1) * spanMillis
}

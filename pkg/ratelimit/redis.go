package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scores are unix milliseconds. Members at or before now-window are pruned
// before counting, matching MemoryLimiter.
var redisSlidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, 0, retry}
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return {1, limit - count - 1, 0}
`)

// RedisLimiter implements the sliding window over a Redis sorted set so that
// several gateway processes share one budget per client.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow checks and records one attempt for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || window <= 0 || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	res, err := redisSlidingScript.Run(ctx, l.client, []string{l.buildKey(key)},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Result()
	if err != nil {
		return Result{}, err
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 3 {
		return Result{}, errors.New("rate limit redis: unexpected response type")
	}
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return Result{}, fmt.Errorf("rate limit redis: unexpected element %T", v)
		}
		nums[i] = n
	}

	if nums[0] == 0 {
		retry := time.Duration(nums[2]) * time.Millisecond
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Remaining: int(nums[1])}, nil
}

func (l *RedisLimiter) buildKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

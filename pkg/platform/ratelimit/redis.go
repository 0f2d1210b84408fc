package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Redis keeps each window in a sorted set scored by unix milliseconds.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

// slidingWindow trims the window, then admits the event only if the set is
// still below the limit. Runs atomically on the server.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
if count >= limit then
  return {0, count, first}
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return {1, count + 1, first}
`)

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := r.now()
	res, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	allowed, count, first := res[0] == 1, int(res[1]), time.UnixMilli(res[2])
	resetAt := first.Add(window)
	if !allowed {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

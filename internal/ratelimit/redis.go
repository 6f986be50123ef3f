package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "hub:ratelimit:"

// fixedWindow increments the counter and starts the window on the first hit.
// It returns the count and the remaining window in milliseconds.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client   redis.UniversalClient
	requests int
	window   time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, requests: requests, window: window}
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindow.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count <= int64(l.requests) {
		return Decision{Allowed: true}, nil
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return Decision{RetryAfter: ttl}, nil
}

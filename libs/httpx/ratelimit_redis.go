package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a window-counter limiter backed by Redis, for
// deployments where multiple instances serve the public API concurrently.
// INCR+PEXPIRE run in one Lua script so racing requests never read a stale
// counter.
type RedisRateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

var redisWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	ms := rl.window.Milliseconds()
	res, err := redisWindowScript.Run(ctx, rl.rdb, []string{rl.prefix + ":" + key}, ms).Result()
	if err != nil {
		return RateDecision{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return RateDecision{}, fmt.Errorf("unexpected redis script result %T", res)
	}
	count, err := toInt64(vals[0])
	if err != nil {
		return RateDecision{}, err
	}
	ttlMs, err := toInt64(vals[1])
	if err != nil {
		return RateDecision{}, err
	}
	if ttlMs < 0 {
		ttlMs = ms
	}

	d := RateDecision{
		Limit:     rl.limit,
		Remaining: rl.limit - int(count),
		Reset:     time.Now().Add(time.Duration(ttlMs) * time.Millisecond),
		Allowed:   count <= int64(rl.limit),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", v)
	}
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

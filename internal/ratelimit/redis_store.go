package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and sets its expiry on the first
// hit of a window.  Redis key expiry replaces the in-process sweep.
var fixedWindowScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    local window_ms = tonumber(ARGV[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], window_ms)
    end
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then
        redis.call('PEXPIRE', KEYS[1], window_ms)
        ttl = window_ms
    end
    return { count, ttl }
`)

// RedisStore keeps counters in Redis so several service replicas share one
// window per client.
type RedisStore struct {
	rdb redis.Scripter
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(rdb redis.Scripter) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Incr(ctx context.Context, key string, win time.Duration, now time.Time) (int, time.Time, error) {
	vals, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, win.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script result %#v", vals)
	}
	count := asInt64(arr[0])
	ttl := asInt64(arr[1])
	return int(count), now.Add(time.Duration(ttl) * time.Millisecond), nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

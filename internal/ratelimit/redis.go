package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the log, then adds the member only while the
// remaining count is below the limit.  Returns {admitted, count}.
const slidingWindowScript = `
local key       = KEYS[1]
local now_ms    = tonumber(ARGV[1])
local cutoff_ms = tonumber(ARGV[2])
local limit     = tonumber(ARGV[3])
local member    = ARGV[4]
local window_ms = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff_ms)
local count = redis.call('ZCARD', key)
if count >= limit then
    return {0, count}
end
redis.call('ZADD', key, now_ms, member)
redis.call('PEXPIRE', key, window_ms)
return {1, count + 1}
`

// RedisCounter stores a sliding log per key in a sorted set scored by the
// admission time in milliseconds.  The check and the add run in one Lua
// script so concurrent instances never admit past the limit.
type RedisCounter struct {
	rdb    *redis.Client
	now    func() time.Time
	member func() string
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb, now: time.Now, member: uuid.NewString}
}

func (c *RedisCounter) Take(ctx context.Context, key string, limit int, window time.Duration) (int64, bool, error) {
	const op = "ratelimit.RedisCounter.Take"

	nowMs := c.now().UnixMilli()
	args := []interface{}{
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-window.Milliseconds(), 10),
		strconv.Itoa(limit),
		c.member(),
		strconv.FormatInt(window.Milliseconds(), 10),
	}
	vals, err := c.rdb.Eval(ctx, slidingWindowScript, []string{key}, args...).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(vals) != 2 {
		return 0, false, fmt.Errorf("%s: unexpected script reply %v", op, vals)
	}
	return vals[1], vals[0] == 1, nil
}

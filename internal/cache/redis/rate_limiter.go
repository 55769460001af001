package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vaultline/artkey/internal/domain"
)

// slidingWindowLua keeps each limiter key as a sorted set of millisecond
// timestamps. Prune, count, and insert run in one script so two concurrent
// requests cannot both slip under the limit.
const slidingWindowLua = `
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
    return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`

// RateLimiter is a sliding-window limiter shared by every API replica, so
// the limit holds across the fleet rather than per process. Keys are owned
// by the caller; this type adds no prefix.
type RateLimiter struct {
	rdb    *redis.Client
	window *redis.Script
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		window: redis.NewScript(slidingWindowLua),
	}
}

// Allow records the request and reports whether it fits inside the window.
// A denied request is not recorded, so hammering a saturated key does not
// push the window further out.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	admitted, err := rl.window.Run(ctx, rl.rdb,
		[]string{key},
		time.Now().UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return admitted == 1, nil
}

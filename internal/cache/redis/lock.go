package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vaultline/artkey/internal/domain"
)

// releaseLua deletes the lock key only while it still carries the caller's
// token. A holder whose TTL already lapsed must not delete the key from
// under the next holder.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager hands out TTL-bounded leases keyed under "lock:". The crank
// takes one per tick so exactly one replica advances lifecycle state; a
// crashed holder is evicted when the TTL runs out.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

var _ domain.LockManager = (*LockManager)(nil)

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
	}
}

// Acquire takes the lease or returns domain.ErrLockHeld when another holder
// has it. The returned release func is idempotent and works even after the
// caller's context is done, since a settling crank step may outlive its
// tick deadline.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := "lock:" + key
	token := uuid.NewString()

	taken, err := lm.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !taken {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.release.Run(rctx, lm.rdb, []string{full}, token).Err()
		})
	}, nil
}

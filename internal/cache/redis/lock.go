package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's
// token, so one holder can never release another's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// defaultRetryInterval is how often a blocked Acquire polls the key.
const defaultRetryInterval = 100 * time.Millisecond

// LockManager implements domain.LockManager using SET NX with a TTL and a
// Lua-based conditional unlock. Several bot instances sharing one signer
// serialise their submissions through it.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	retry    time.Duration
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
		retry:    defaultRetryInterval,
	}
}

func lockKey(key string) string {
	return "liqbot:lock:" + key
}

// TryAcquire makes a single attempt. It returns domain.ErrLockHeld if the
// lock is held by another party.
func (lm *LockManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Acquire blocks until the lock is obtained or ctx ends. The returned
// unlock function is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(lm.retry)
	defer ticker.Stop()
	for {
		unlock, err := lm.TryAcquire(ctx, key, ttl)
		if !errors.Is(err, domain.ErrLockHeld) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: wait for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ domain.LockManager = (*LockManager)(nil)

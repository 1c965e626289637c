package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/untis-notifier/internal/apperr"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLockRepository guards a notifier run with a Redis key so that two
// processes never fetch and notify for the same class at once.
type RunLockRepository struct {
	rdb *redis.Client
}

func NewRunLockRepository(rdb *redis.Client) *RunLockRepository {
	return &RunLockRepository{rdb: rdb}
}

// Acquire takes the lock for ttl. A lock held by someone else yields ErrLocked.
func (r *RunLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return apperr.New(apperr.ErrStorage, "runlock.acquire", fmt.Errorf("setnx %s: %w", key, err))
	}
	if !ok {
		return apperr.Errorf(apperr.ErrLocked, "runlock.acquire", "lock %s is held", key)
	}
	return nil
}

// Release drops the lock if token still owns it.
func (r *RunLockRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
		return apperr.New(apperr.ErrStorage, "runlock.release", err)
	}
	return nil
}

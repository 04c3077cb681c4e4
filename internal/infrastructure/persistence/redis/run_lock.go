package redis

import (
	"context"
	"errors"
	"time"
)

// ErrRunInProgress is returned when another worker holds the run lock.
var ErrRunInProgress = errors.New("redis: matching run already in progress")

// RunLock is a best-effort distributed lock that keeps two workers
// from executing the same scheduled matching run concurrently.
type RunLock struct {
	cache *Cache
	ttl   time.Duration
}

// NewRunLock creates a run lock with the default TTL.
func NewRunLock(cache *Cache) *RunLock {
	return &RunLock{cache: cache, ttl: TTLRunLock}
}

// lockKey namespaces locks per run mode.
func lockKey(mode string) string {
	return PrefixLock + "run:" + mode
}

// Acquire takes the lock for a run mode. Returns ErrRunInProgress
// if another worker holds it. The TTL guards against a crashed
// worker holding the lock forever.
func (l *RunLock) Acquire(ctx context.Context, mode, holder string) error {
	if l.cache == nil {
		// Single-worker deployment without Redis runs unlocked.
		return nil
	}
	ok, err := l.cache.SetNX(ctx, lockKey(mode), holder, l.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// Release frees the lock.
func (l *RunLock) Release(ctx context.Context, mode string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Delete(ctx, lockKey(mode))
}

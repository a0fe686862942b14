package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/instance"
)

// defaultLockTTL outlives one cycle so a crashed worker frees the lock on its own.
const defaultLockTTL = 10 * time.Minute

// Lock elects the single cron worker that runs a cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// leaseStore is satisfied by pkg/redis.Client.
type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a lease held under key. The value names the holder so only
// the worker that took the lease can give it back.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration

	mu     sync.Mutex
	holder string
}

// NewRedisLock builds the cron lease; pass redis.Client.LockKey("cron") as key.
func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder := fmt.Sprintf("%s:%d", instance.GetID(), time.Now().UnixNano())
	ok, err := l.store.SetNX(ctx, l.key, holder, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.holder = holder
	}
	return ok, nil
}

// Release is a no-op when this worker does not hold the lease any more.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == "" {
		return nil
	}
	holder := l.holder
	l.holder = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, holder); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

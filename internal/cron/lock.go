package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// The TTL is a crash backstop, not the coordination mechanism: a worker that
// dies without releasing frees the lock once the TTL lapses.
const (
	defaultLockTTL = 25 * time.Hour
	minLockTTL     = time.Minute
	lockTTLTicks   = 3
)

// LockTTLForInterval sizes the crash backstop from the sweep cadence. A dead
// holder stalls the group for a few ticks at most instead of a full day.
func LockTTLForInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = defaultInterval
	}
	ttl := lockTTLTicks * interval
	if ttl < minLockTTL {
		ttl = minLockTTL
	}
	if ttl > defaultLockTTL {
		ttl = defaultLockTTL
	}
	return ttl
}

// Lock serializes sweeps across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lease keyed per sweep group. Each Acquire stamps a
// fresh owner token so a stale holder cannot release a lock it no longer
// owns.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = token
	}
	return ok, nil
}

// Release deletes the key only while our token is still the stored owner.
// An expired or stolen lock is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	stored, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner %s: %w", l.key, err)
	}
	if stored != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}

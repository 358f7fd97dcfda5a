package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgredis "github.com/postpilot-hq/postpilot/internal/pkg/redis"
)

// RedisSweepLock implements SweepLock on a Redis SETNX lease, so only one
// replica sweeps at a time. The TTL bounds how long a crashed holder can
// block the others.
type RedisSweepLock struct {
	redis *pkgredis.Client
	key   string
	ttl   time.Duration
	value string
}

func NewRedisSweepLock(client *pkgredis.Client, key string, ttl time.Duration) *RedisSweepLock {
	return &RedisSweepLock{
		redis: client,
		key:   key,
		ttl:   ttl,
		value: uuid.NewString(),
	}
}

func (l *RedisSweepLock) Acquire(ctx context.Context) (bool, error) {
	return l.redis.AcquireLock(ctx, l.key, l.value, l.ttl)
}

func (l *RedisSweepLock) Release(ctx context.Context) error {
	return l.redis.ReleaseLock(ctx, l.key, l.value)
}

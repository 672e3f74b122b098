// Package lock serializes reconciliation passes per performance. Two
// concurrent passes for the same performance could allocate the same pack id
// sequence value or reconcile against a stale snapshot, corrupting lineage.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another worker holds the performance lock.
// The pass should be retried later, not forced.
var ErrLockHeld = errors.New("performance lock held by another worker")

// PerformanceLocker provides mutual exclusion keyed by performance id.
// Passes for different performances run fully in parallel.
type PerformanceLocker interface {
	// Acquire returns a release func on success or ErrLockHeld when the
	// performance is already being reconciled elsewhere.
	Acquire(ctx context.Context, performanceID string) (func(), error)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a Redis-backed lease locker. The TTL bounds how long
// a crashed worker can block a performance.
func NewRedisLocker(client *redis.Client, ttl time.Duration) PerformanceLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisLocker{client: client, ttl: ttl}
}

// releaseScript deletes the lock only when the caller still owns it, so a
// lease that expired and was re-acquired elsewhere is never released by the
// old owner.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *redisLocker) Acquire(ctx context.Context, performanceID string) (func(), error) {
	key := "seatpack:lock:" + performanceID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("[PerformanceLock] release failed for %s: %v", key, err)
		}
	}
	return release, nil
}

// NopLocker performs no locking. Used in tests and single-worker
// deployments where the consumer already serializes per performance.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

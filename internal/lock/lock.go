// Package lock provides the per-system run lock that keeps a single
// exporter writing checkpoints for an information system at a time.
//
// Redis Key Structure:
//
//	eventlog:export:lock:{system} - owner token, expires after the lease TTL
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another exporter holds the system's lock.
var ErrLocked = errors.New("information system is locked by another exporter")

// ErrLeaseLost is returned when a lease expired or was taken over.
var ErrLeaseLost = errors.New("lock lease lost")

// Locker acquires per-system leases.
type Locker interface {
	Acquire(ctx context.Context, system string) (Lease, error)
}

// Lease is a held lock. Refresh extends it; Release gives it up.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// NoopLocker grants every request. Used when Redis is disabled and the
// deployment guarantees one exporter per system by other means.
type NoopLocker struct{}

// Acquire always succeeds.
func (NoopLocker) Acquire(context.Context, string) (Lease, error) { return noopLease{}, nil }

type noopLease struct{}

func (noopLease) Refresh(context.Context) error { return nil }
func (noopLease) Release(context.Context) error { return nil }

// Compare-and-delete / compare-and-extend so a stale owner cannot touch a
// lock that has since been taken by someone else.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker stores leases as expiring Redis keys.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisLocker connects to redisURL and verifies the connection.
func NewRedisLocker(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisLockerFromClient(client, ttl), nil
}

// NewRedisLockerFromClient creates a locker from an existing Redis connection.
func NewRedisLockerFromClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{redis: client, ttl: ttl}
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.redis.Close()
}

func lockKey(system string) string {
	return fmt.Sprintf("eventlog:export:lock:%s", system)
}

// Acquire takes the lock for system or returns ErrLocked.
func (l *RedisLocker) Acquire(ctx context.Context, system string) (Lease, error) {
	token := uuid.NewString()
	key := lockKey(system)

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, system)
	}
	return &redisLease{redis: l.redis, key: key, token: token, ttl: l.ttl}, nil
}

type redisLease struct {
	redis *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.redis, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.redis, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

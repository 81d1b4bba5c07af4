package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockTTL bounds how long a crashed holder can block an enqueue.
	DefaultLockTTL = 10 * time.Second
	// DefaultLockRetryDelay is the wait between acquisition attempts.
	DefaultLockRetryDelay = 50 * time.Millisecond
	// DefaultLockAttempts is the number of acquisition attempts.
	DefaultLockAttempts = 40
)

var (
	// ErrLockNotAcquired is returned when every attempt found the key held.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing a lock this holder lost.
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker serializes enqueue decisions for a snapshot key.
type Locker interface {
	// Acquire blocks until the key is held and returns its release func.
	Acquire(ctx context.Context, key Key) (func(context.Context) error, error)
}

// LockConfig tunes RedisLocker.
type LockConfig struct {
	TTL        time.Duration
	RetryDelay time.Duration
	Attempts   int
}

// RedisLocker is a SET NX lock with a per-acquisition token, shared by every
// instance pointed at the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	cfg    LockConfig
}

// NewRedisLocker fills zero config values with defaults.
func NewRedisLocker(client redis.UniversalClient, prefix string, cfg LockConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLockTTL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultLockRetryDelay
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultLockAttempts
	}
	return &RedisLocker{client: client, prefix: prefix, cfg: cfg}
}

func (l *RedisLocker) lockKey(key Key) string {
	return l.prefix + "lock:enqueue:" + key.String()
}

// Acquire retries SET NX until it wins, ctx ends or attempts run out.
func (l *RedisLocker) Acquire(ctx context.Context, key Key) (func(context.Context) error, error) {
	name := l.lockKey(key)
	token := uuid.NewString()

	for attempt := range l.cfg.Attempts {
		ok, err := l.client.SetNX(ctx, name, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return func(releaseCtx context.Context) error {
				return l.release(releaseCtx, name, token)
			}, nil
		}
		if attempt == l.cfg.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, name)
}

func (l *RedisLocker) release(ctx context.Context, name, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

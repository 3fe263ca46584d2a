package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout indicates the lock could not be acquired before the wait budget ran out.
var ErrLockTimeout = errors.New("timed out waiting for evaluation lock")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process pointing at the same Redis.
type RedisLocker struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
}

// RedisOption customises a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock survives if its holder dies.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithWait sets the maximum time Lock waits for a busy key.
func WithWait(wait time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if wait > 0 {
			l.wait = wait
		}
	}
}

// NewRedisLocker builds a Redis-backed locker.
func NewRedisLocker(client *redis.Client, prefix string, opts ...RedisOption) *RedisLocker {
	if prefix == "" {
		prefix = "evaluation:lock"
	}
	locker := &RedisLocker{
		client:  client,
		prefix:  prefix,
		ttl:     10 * time.Second,
		wait:    5 * time.Second,
		backoff: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(locker)
	}
	return locker
}

// Lock acquires key with SET NX, polling until it is free, ctx ends or the wait budget is spent.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire evaluation lock: %w", err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// Released with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
	}, nil
}

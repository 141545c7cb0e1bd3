package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker takes short-lived, non-blocking named locks
type Locker interface {
	// TryLock returns ok=false without error when another holder owns key
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// ============================================================================
// REDIS LOCKER
// ============================================================================

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker coordinates locks across instances with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker creates a new RedisLocker
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// ============================================================================
// LOCAL LOCKER
// ============================================================================

// LocalLocker is an in-process Locker for single-instance deployments and tests
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]localLock
	tokens uint64
}

type localLock struct {
	token     uint64
	expiresAt time.Time
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock)}
}

// TryLock implements Locker
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if current, exists := l.held[key]; exists && now.Before(current.expiresAt) {
		return nil, false, nil
	}

	l.tokens++
	token := l.tokens
	l.held[key] = localLock{token: token, expiresAt: now.Add(ttl)}

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, exists := l.held[key]; exists && current.token == token {
			delete(l.held, key)
		}
	}
	return unlock, true, nil
}

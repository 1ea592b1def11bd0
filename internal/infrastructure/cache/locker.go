package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
var ErrLockNotHeld = errors.New("lock not held")

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out named locks with a TTL so a crashed holder cannot block others
// forever
type Locker interface {
	// TryLock acquires key without waiting. ok is false when another holder has it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (lock Lock, ok bool, err error)
}

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLocker creates a locker on an existing Redis client
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

// TryLock acquires key for ttl
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	full := l.keyPrefix + key
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: l.client, key: full, token: token}, true, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// InMemoryLocker implements Locker for a single process
type InMemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

// NewInMemoryLocker creates an in-process locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{locks: make(map[string]*memoryLock)}
}

// TryLock acquires key for ttl
func (l *InMemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return nil, false, nil
	}
	lock := &memoryLock{locker: l, key: key, expiresAt: now.Add(ttl)}
	l.locks[key] = lock
	return lock, true, nil
}

type memoryLock struct {
	locker    *InMemoryLocker
	key       string
	expiresAt time.Time
}

func (m *memoryLock) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	if m.locker.locks[m.key] != m {
		return ErrLockNotHeld
	}
	delete(m.locker.locks, m.key)
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*InMemoryLocker)(nil)
)

package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobLock grants a named lease to one holder at a time
type JobLock interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the lock only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisJobLock is a lease-based mutex that keeps scheduler jobs from
// overlapping across instances.
type RedisJobLock struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisJobLock creates a lock namespace on client
func NewRedisJobLock(client redis.UniversalClient) *RedisJobLock {
	return &RedisJobLock{client: client, prefix: "ledger:job-lock:"}
}

// TryLock acquires name for ttl. ok is false when another holder has it.
// The returned release is a no-op once the lease has expired and been
// taken by someone else.
func (l *RedisJobLock) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	key := l.prefix + name
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire job lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var (
	_ JobLock = (*RedisJobLock)(nil)
	_ JobLock = (*MemoryJobLock)(nil)
)

// MemoryJobLock is the single-process JobLock
type MemoryJobLock struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewMemoryJobLock creates an empty lock table
func NewMemoryJobLock() *MemoryJobLock {
	return &MemoryJobLock{held: map[string]time.Time{}}
}

// TryLock acquires name for ttl within this process
func (l *MemoryJobLock) TryLock(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.held[name] = until
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[name].Equal(until) {
			delete(l.held, name)
		}
		return nil
	}, true, nil
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rentals/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	fresh, err := store.MarkProcessed(ctx, "paystack:charge.success:ref-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, "paystack:charge.success:ref-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err := store.IsProcessed(ctx, "paystack:charge.success:ref-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.IsProcessed(ctx, "other")
	require.NoError(t, err)
	assert.False(t, seen)

	t.Run("expired keys can be marked again and are evicted", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		seen, err := store.IsProcessed(ctx, "paystack:charge.success:ref-1")
		require.NoError(t, err)
		assert.False(t, seen)

		store.evictExpired()
		assert.Equal(t, 0, store.Len())

		fresh, err := store.MarkProcessed(ctx, "paystack:charge.success:ref-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestMemoryJobLock(t *testing.T) {
	lock := NewMemoryJobLock()
	ctx := context.Background()

	release, ok, err := lock.TryLock(ctx, "auto-refund", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryLock(ctx, "auto-refund", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = lock.TryLock(ctx, "late-fees", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = lock.TryLock(ctx, "auto-refund", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryJobLock_ExpiredLeaseIsReclaimed(t *testing.T) {
	lock := NewMemoryJobLock()
	ctx := context.Background()

	stale, ok, err := lock.TryLock(ctx, "overdue", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	_, ok, err = lock.TryLock(ctx, "overdue", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the stale holder must not release the new lease
	require.NoError(t, stale(ctx))
	_, ok, err = lock.TryLock(ctx, "overdue", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStores_WithoutRedisUsesMemory(t *testing.T) {
	stores, err := NewStores(context.Background(), config.RedisConfig{}, false, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()

	assert.IsType(t, &MemoryIdempotencyStore{}, stores.Idempotency)
	assert.IsType(t, &MemoryJobLock{}, stores.JobLock)
	assert.NoError(t, stores.Ping(context.Background()))
}

func TestNewStores_UnreachableRedis(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, err := NewStores(context.Background(), cfg, false, zap.NewNop())
	assert.Error(t, err)

	stores, err := NewStores(context.Background(), cfg, true, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()
	assert.IsType(t, &MemoryIdempotencyStore{}, stores.Idempotency)
}

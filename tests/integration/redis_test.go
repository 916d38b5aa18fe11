package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentals/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisStores_DedupAndJobLease(t *testing.T) {
	cfg := NewRedis(t)
	ctx := context.Background()

	stores, err := cache.NewStores(ctx, cfg, false, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()
	require.IsType(t, &cache.RedisIdempotencyStore{}, stores.Idempotency)
	require.NoError(t, stores.Ping(ctx))

	key := "paystack:charge.success:PSK_REDIS_1"
	seen, err := stores.Idempotency.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	// SET NX: concurrent deliveries race on redis, exactly one wins
	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := stores.Idempotency.MarkProcessed(ctx, key, time.Minute)
			if assert.NoError(t, err) && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())

	seen, err = stores.Idempotency.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	release, ok, err := stores.JobLock.TryLock(ctx, "late-fees", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = stores.JobLock.TryLock(ctx, "late-fees", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a held lease is not granted twice")

	require.NoError(t, release(ctx))
	release, ok, err = stores.JobLock.TryLock(ctx, "late-fees", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, release(ctx))
}

func TestRedisStores_LeaseExpires(t *testing.T) {
	cfg := NewRedis(t)
	ctx := context.Background()

	stores, err := cache.NewStores(ctx, cfg, false, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close()

	_, ok, err := stores.JobLock.TryLock(ctx, "auto-refunds", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		release, ok, err := stores.JobLock.TryLock(ctx, "auto-refunds", time.Second)
		if err != nil || !ok {
			return false
		}
		_ = release(ctx)
		return true
	}, 5*time.Second, 100*time.Millisecond)
}

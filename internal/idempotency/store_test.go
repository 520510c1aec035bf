package idempotency

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the lifecycle every Store must honour.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := uuid.NewString()

	ok, err := s.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "first acquire wins")

	ok, err = s.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire loses while processing")

	require.NoError(t, s.Release(ctx, key))
	ok, err = s.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "acquire succeeds after release")

	require.NoError(t, s.Done(ctx, key))
	require.NoError(t, s.Release(ctx, key))
	ok, err = s.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "done keys stay held")

	_, err = s.Acquire(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_IsDone(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.Acquire(ctx, "a")
	assert.False(t, s.IsDone("a"))
	require.NoError(t, s.Done(ctx, "a"))
	assert.True(t, s.IsDone("a"))
}

func TestMemoryStore_ConcurrentAcquire(t *testing.T) {
	s := NewMemoryStore()
	var winners atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Acquire(context.Background(), "same"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

// redisClient connects to REDIS_ADDR or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return client
}

func TestRedisStore(t *testing.T) {
	exerciseStore(t, NewRedisStore(redisClient(t), "scenereel-test:", time.Minute))
}

func TestRedisStore_ReleaseKeepsTakenOverClaim(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	key := uuid.NewString()
	prefix := "scenereel-test:"

	first := NewRedisStore(client, prefix, time.Minute)
	second := NewRedisStore(client, prefix, time.Minute)

	ok, err := first.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	// The first claim expires and another process takes the key over.
	require.NoError(t, client.Del(ctx, prefix+key).Err())
	ok, err = second.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx, key))

	ok, err = NewRedisStore(client, prefix, time.Minute).Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "the second claim must survive the stale release")

	require.NoError(t, second.Release(ctx, key))
	ok, err = first.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, first.Release(ctx, key))
}

func TestRedisStore_ReleaseWithoutClaimIsNoop(t *testing.T) {
	// A nil client panics if Release reaches Redis.
	s := NewRedisStore(nil, "", 0)
	assert.NoError(t, s.Release(context.Background(), "never-acquired"))
}

func TestNewRedisStore_Defaults(t *testing.T) {
	s := NewRedisStore(nil, "", 0)
	assert.Equal(t, DefaultProcessingTTL, s.ttl)
	assert.Equal(t, "scenereel:request:", s.prefix)
}

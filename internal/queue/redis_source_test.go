package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Skipf("Skipping Redis source test: invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping Redis source test: Redis not available: %v", err)
	}

	return client
}

func newTestRedisSource(t *testing.T, client *redis.Client, consumer string) *RedisSource {
	t.Helper()
	stream := "test:analyses:" + uuid.NewString()[:8]
	t.Cleanup(func() {
		client.XGroupDestroy(context.Background(), stream, "test-workers")
		client.Del(context.Background(), stream)
	})

	src, err := NewRedisSource(context.Background(), client, RedisSourceConfig{
		Stream:   stream,
		Group:    "test-workers",
		Consumer: consumer,
		Block:    200 * time.Millisecond,
	})
	require.NoError(t, err)
	return src
}

func TestRedisSource_PushPopOrder(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()
	src := newTestRedisSource(t, client, "c1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, src.Push(ctx, id))
	}
	assert.Equal(t, len(ids), src.Len())

	for _, want := range ids {
		got, err := src.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, src.Len())
}

func TestRedisSource_GroupAlreadyExists(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()
	src := newTestRedisSource(t, client, "c1")

	again, err := NewRedisSource(context.Background(), client, RedisSourceConfig{
		Stream: src.stream,
		Group:  src.group,
	})
	require.NoError(t, err)
	assert.NotEqual(t, src.consumer, again.consumer)
}

func TestRedisSource_PopHonoursContext(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()
	src := newTestRedisSource(t, client, "c1")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := src.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRedisSource_Close(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()
	src := newTestRedisSource(t, client, "c1")

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	assert.ErrorIs(t, src.Push(context.Background(), uuid.New()), common.ErrClosed)
	_, err := src.Pop(context.Background())
	assert.ErrorIs(t, err, common.ErrClosed)
}

func TestRedisSource_DispatcherEndToEnd(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()
	src := newTestRedisSource(t, client, "c1")

	d := NewDispatcher(store.NewMemory(), src)
	defer d.Close()
	ctx := context.Background()

	var mu sync.Mutex
	ran := map[uuid.UUID]int{}
	d.StartConsumers(ctx, 3, func(ctx context.Context, j *job.Job, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
		mu.Lock()
		ran[j.ID]++
		mu.Unlock()
		return okHandler(ctx, j, progress)
	})

	var ids []uuid.UUID
	for range 10 {
		id, err := d.Submit(ctx, submission("u1"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitStatus(t, d, id, job.StatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.Equal(t, 1, ran[id])
	}
}

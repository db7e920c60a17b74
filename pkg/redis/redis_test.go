package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// testClient connects to REDIS_ADDR or skips the test.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	client := NewClientFromRedis(rdb, testLogger())
	require.NoError(t, client.Ping(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCheckpointEncoding(t *testing.T) {
	cp := &models.DeduplicationCheckpoint{
		JobID:     "job-1",
		Processed: 4,
		Total:     10,
		Duplicates: models.DuplicateMap{
			"a": {"b": 0.93, "c": 0.8},
		},
	}

	data, err := EncodeCheckpoint(cp)
	require.NoError(t, err)

	got, err := DecodeCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, cp, got)
}

func TestDecodeCheckpoint_EmptyDuplicates(t *testing.T) {
	data, err := EncodeCheckpoint(&models.DeduplicationCheckpoint{JobID: "job-1", Total: 3})
	require.NoError(t, err)

	got, err := DecodeCheckpoint(data)
	require.NoError(t, err)
	assert.NotNil(t, got.Duplicates)
	assert.Empty(t, got.Duplicates)
}

func TestDecodeCheckpoint_Garbage(t *testing.T) {
	_, err := DecodeCheckpoint([]byte{0xc1})
	assert.Error(t, err)
}

func TestLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(testClient(t), "clover:test:lock:")
	key := uuid.New().String()

	lock, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, lock.Extend(ctx, 2*time.Minute))
	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	again, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocker_WithLock(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(testClient(t), "clover:test:lock:")
	key := uuid.New().String()

	boom := errors.New("boom")
	err := locker.WithLock(ctx, key, time.Minute, func() error {
		assert.ErrorIs(t, locker.WithLock(ctx, key, time.Minute, func() error { return nil }), ErrLockNotAcquired)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// released after fn returns
	assert.NoError(t, locker.WithLock(ctx, key, time.Minute, func() error { return nil }))
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	store := NewCheckpointStore(testClient(t), "clover:test:checkpoint:", time.Minute)
	jobID := uuid.New().String()

	got, err := store.Load(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, got)

	cp := &models.DeduplicationCheckpoint{JobID: jobID, Processed: 2, Total: 5, Duplicates: models.DuplicateMap{"a": {"b": 0.9}}}
	require.NoError(t, store.Save(ctx, cp))

	got, err = store.Load(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, cp, got)

	require.NoError(t, store.Delete(ctx, jobID))
	got, err = store.Load(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

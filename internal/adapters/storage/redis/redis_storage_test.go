package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

// newIntegrationStorage conecta em um Redis local e pula o teste quando o
// servidor não está disponível.
func newIntegrationStorage(t *testing.T) *Storage {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	storage, err := New(Config{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testKey(t *testing.T, suffix string) string {
	return fmt.Sprintf("guardian:test:%s:%d:%s", t.Name(), time.Now().UnixNano(), suffix)
}

func TestIntegration_IncrementCountsAndExpires(t *testing.T) {
	storage := newIntegrationStorage(t)
	ctx := context.Background()
	key := testKey(t, "counter")

	for i := 1; i <= 3; i++ {
		count, err := storage.Increment(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	count, err := storage.Count(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Short TTL: the key must disappear on its own.
	short := testKey(t, "short")
	_, err = storage.Increment(ctx, short, 100*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		count, err := storage.Count(ctx, short)
		return err == nil && count == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestIntegration_CountMissingKeyIsZero(t *testing.T) {
	storage := newIntegrationStorage(t)

	count, err := storage.Count(context.Background(), testKey(t, "missing"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIntegration_DeleteByPrefix(t *testing.T) {
	storage := newIntegrationStorage(t)
	ctx := context.Background()
	prefix := testKey(t, "prefix")

	for i := 0; i < 5; i++ {
		_, err := storage.Increment(ctx, fmt.Sprintf("%s:%d", prefix, i), time.Minute)
		require.NoError(t, err)
	}
	_, err := storage.Increment(ctx, testKey(t, "other"), time.Minute)
	require.NoError(t, err)

	removed, err := storage.DeleteByPrefix(ctx, prefix+":")
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)

	count, err := storage.Count(ctx, prefix+":0")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIntegration_BlockRoundTrip(t *testing.T) {
	storage := newIntegrationStorage(t)
	ctx := context.Background()
	key := testKey(t, "block")

	record := domain.BlockRecord{
		Identifier: "ip:1.2.3.4",
		Reason:     "manual",
		BlockedAt:  time.Now().UTC().Truncate(time.Second),
		ExpiresAt:  time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, storage.SetBlock(ctx, key, record, time.Hour))

	got, err := storage.GetBlock(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Identifier, got.Identifier)
	assert.Equal(t, record.Reason, got.Reason)

	require.NoError(t, storage.RemoveBlock(ctx, key))

	got, err = storage.GetBlock(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

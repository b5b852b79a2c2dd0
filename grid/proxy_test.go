package grid

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newMemoryBucket(t *testing.T, store KeyedAtomicStore, clock *testutil.ManualClock, key string, opts ...ProxyOption) *bucket.Bucket {
	t.Helper()
	cfg := newTestConfig(t, clock)
	opts = append([]ProxyOption{WithProxyLogger(logger.GetLogger("test"))}, opts...)
	proxy, err := NewProxy(store, key, cfg, opts...)
	require.NoError(t, err)
	b, err := NewBucket(context.Background(), proxy)
	require.NoError(t, err)
	return b
}

func TestNewProxy_EmptyKey(t *testing.T) {
	cfg := newTestConfig(t, testutil.NewManualClock(0))
	_, err := NewProxy(NewMemoryStore(0), "", cfg)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGridBucket_Scenario(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(1)
	b := newMemoryBucket(t, store, clock, "api")

	ok, err := b.TryConsume(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	available, err := b.AvailableTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)

	clock.Set(int64(490 * time.Millisecond))
	ok, _ = b.TryConsume(ctx, 5)
	assert.False(t, ok)

	clock.Set(int64(500 * time.Millisecond))
	ok, _ = b.TryConsume(ctx, 5)
	assert.True(t, ok)

	consumed, err := b.ConsumeAsMuchAsPossible(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), consumed)

	require.NoError(t, b.ReturnTokens(ctx, 4))
	available, _ = b.AvailableTokens(ctx)
	assert.Equal(t, int64(4), available)
}

func TestGridBucket_WaitOutsideCriticalSection(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	b := newMemoryBucket(t, NewMemoryStore(0), clock, "wait")

	ok, _ := b.TryConsume(ctx, 10)
	require.True(t, ok)

	ok, err := b.TryConsumeAndWait(ctx, 5, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{int64(500 * time.Millisecond)}, clock.Parked())

	ok, err = b.TryConsumeAndWait(ctx, 10, 500*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGridBucket_CrashRecovery(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(1)

	var restored atomic.Int32
	b := newMemoryBucket(t, store, clock, "lost", WithRestoreListener(func(_ context.Context, key string) {
		assert.Equal(t, "lost", key)
		restored.Add(1)
	}))

	ok, _ := b.TryConsume(ctx, 9)
	require.True(t, ok)

	store.Evict("lost")
	assert.Nil(t, store.Get("lost"))

	// 按新 bucket 满容量重建
	ok, err := b.TryConsume(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), restored.Load())
	assert.NotNil(t, store.Get("lost"))

	fresh := newMemoryBucket(t, NewMemoryStore(0), clock, "fresh")
	ok, _ = fresh.TryConsume(ctx, 10)
	assert.True(t, ok)
}

func TestGridBucket_BackupPropagation(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(2)
	b := newMemoryBucket(t, store, clock, "replicated")

	ok, _ := b.TryConsume(ctx, 6)
	require.True(t, ok)

	primary := store.Get("replicated")
	assert.Equal(t, primary, store.Backup(0, "replicated"))
	assert.Equal(t, primary, store.Backup(1, "replicated"))

	// 只读命令不影响副本
	_, _ = b.AvailableTokens(ctx)
	assert.Equal(t, primary, store.Backup(0, "replicated"))

	// 主副本丢失后，提升的副本保留了消费记录
	require.True(t, store.FailPrimary("replicated"))
	available, err := b.AvailableTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), available)
}

func TestGridBucket_ConcurrentTryConsume(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(1)
	cfg := newTestConfig(t, clock, bucket.Limited(bucket.Constant(100), time.Hour))
	proxy, err := NewProxy(store, "shared", cfg)
	require.NoError(t, err)
	b, err := NewBucket(ctx, proxy)
	require.NoError(t, err)

	var granted atomic.Int64
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				ok, err := b.TryConsume(ctx, 1)
				if err != nil {
					return err
				}
				if ok {
					granted.Add(1)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(100), granted.Load())
}

func TestGridBucket_Snapshot(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(0)
	b := newMemoryBucket(t, store, clock, "snap")

	ok, _ := b.TryConsume(ctx, 3)
	require.True(t, ok)

	snapshot, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, snapshot.Tokens(b.Configuration(), 0))

	other := newMemoryBucket(t, store, clock, "snap-copy")
	require.NoError(t, other.ApplySnapshot(ctx, snapshot))
	available, _ := other.AvailableTokens(ctx)
	assert.Equal(t, int64(7), available)

	wide := newTestConfig(t, clock, bucket.Limited(bucket.Constant(10), time.Second), bucket.Limited(bucket.Constant(100), time.Minute))
	err = other.ApplySnapshot(ctx, bucket.NewInitialState(wide))
	assert.ErrorIs(t, err, bucket.ErrIncompatibleSnapshot)
}

func TestNewBucket_KeepsExistingState(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	store := NewMemoryStore(0)

	first := newMemoryBucket(t, store, clock, "existing")
	ok, _ := first.TryConsume(ctx, 10)
	require.True(t, ok)

	second := newMemoryBucket(t, store, clock, "existing")
	available, _ := second.AvailableTokens(ctx)
	assert.Equal(t, int64(0), available)
}

type failingStore struct{ err error }

func (s failingStore) Execute(context.Context, string, Processor) error  { return s.err }
func (s failingStore) PutIfAbsent(context.Context, string, []byte) error { return nil }

func TestGridBucket_StoreFailure(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewManualClock(0)
	boom := errors.New("connection refused")
	b := newMemoryBucket(t, failingStore{err: boom}, clock, "down")

	ok, err := b.TryConsume(ctx, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, boom)

	_, err = b.TryConsumeAndWait(ctx, 1, time.Second)
	assert.ErrorIs(t, err, ErrStoreFailure)

	cancelled := newMemoryBucket(t, failingStore{err: context.Canceled}, clock, "cancelled")
	_, err = cancelled.TryConsume(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStoreFailure)
}

func TestMemoryStore_ExecuteCancelledContext(t *testing.T) {
	store := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Execute(ctx, "k", ProcessorFunc(func([]byte) ([]byte, bool, error) {
		t.Fatal("processor must not run")
		return nil, false, nil
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.PutIfAbsent(ctx, "k", []byte{1}), context.Canceled)
	assert.Equal(t, 0, store.Len())
}

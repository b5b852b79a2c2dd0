package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_TryConsumeAsync_ImmediateGrant(t *testing.T) {
	ctx := context.Background()
	b, clock, _ := newTestBucket(t, Limited(Constant(10), time.Second))
	scheduler := testutil.NewManualScheduler(clock)

	f := b.TryConsumeAsync(ctx, 3, time.Second, scheduler)
	ok, err := f.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, scheduler.Delays())
}

func TestBucket_TryConsumeAsync_WaitsOnScheduler(t *testing.T) {
	ctx := context.Background()
	b, clock, stats := newTestBucket(t, Limited(Constant(10), time.Second).WithInitialTokens(0))
	scheduler := testutil.NewManualScheduler(clock)

	f := b.TryConsumeAsync(ctx, 5, time.Second, scheduler)
	ok, err := f.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []time.Duration{500 * time.Millisecond}, scheduler.Delays())
	assert.Empty(t, clock.Parked(), "async path never parks the caller")
	assert.Equal(t, int64(5), stats.Snapshot().Consumed)
}

func TestBucket_TryConsumeAsync_DeniedBeyondBudget(t *testing.T) {
	ctx := context.Background()
	b, clock, _ := newTestBucket(t, Limited(Constant(100), 6*time.Second).WithInitialTokens(0))
	scheduler := testutil.NewManualScheduler(clock)

	f := b.TryConsumeAsync(ctx, 50, 2*time.Second, scheduler)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future not completed")
	}
	ok, err := f.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, scheduler.Delays())
}

func TestBucket_ConsumeAsync_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	b, clock, _ := newTestBucket(t, Limited(Constant(10), time.Second))
	scheduler := testutil.NewManualScheduler(clock)

	_, err := b.ConsumeAsync(ctx, 0, scheduler).Get(ctx)
	assert.ErrorIs(t, err, ErrNonPositiveTokens)

	_, err = b.TryConsumeAsync(ctx, 1, -time.Second, scheduler).Get(ctx)
	assert.ErrorIs(t, err, ErrNonPositiveWait)
}

func TestBucket_ConsumeAsync_Cancel(t *testing.T) {
	ctx := context.Background()
	b, clock, _ := newTestBucket(t, Limited(Constant(10), time.Second).WithInitialTokens(0))
	scheduler := testutil.NewManualScheduler(clock)
	scheduler.Hold()

	f := b.ConsumeAsync(ctx, 5, scheduler)
	require.Len(t, scheduler.Delays(), 1)

	assert.True(t, f.Cancel())
	assert.False(t, f.Cancel(), "already completed")

	ok, err := f.Get(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInterrupted)

	// 被取消的定时任务不会再执行
	scheduler.Release()
	time.Sleep(10 * time.Millisecond)
	available, _ := b.AvailableTokens(ctx)
	assert.Equal(t, int64(0), available)
}

// eagerScheduler 第一次调度在返回前同步执行任务，之后的调度挂起
type eagerScheduler struct {
	mu        sync.Mutex
	calls     int
	cancelled []int
}

func (s *eagerScheduler) Schedule(_ time.Duration, task func()) func() bool {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if call == 1 {
		task()
	}
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled = append(s.cancelled, call)
		return call != 1
	}
}

func TestBucket_ConsumeAsync_CancelStopsLatestTimer(t *testing.T) {
	ctx := context.Background()
	b, _, _ := newTestBucket(t, Limited(Constant(10), time.Second).WithInitialTokens(0))
	scheduler := &eagerScheduler{}

	f := b.ConsumeAsync(ctx, 5, scheduler)
	require.Equal(t, 2, scheduler.calls)

	assert.True(t, f.Cancel())
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.Equal(t, []int{2}, scheduler.cancelled)
}

func TestBucket_ConsumeAsync_ContextCancelled(t *testing.T) {
	b, clock, stats := newTestBucket(t, Limited(Constant(10), time.Second).WithInitialTokens(0))
	scheduler := testutil.NewManualScheduler(clock)
	scheduler.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	f := b.ConsumeAsync(ctx, 5, scheduler)
	cancel()

	ok, err := f.Get(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), stats.Snapshot().Interrupts)
}

func TestPoolScheduler(t *testing.T) {
	scheduler, err := NewPoolScheduler(4)
	require.NoError(t, err)
	defer scheduler.Release()

	fired := make(chan struct{})
	scheduler.Schedule(5*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task not fired")
	}

	cancel := scheduler.Schedule(time.Hour, func() { t.Error("cancelled task fired") })
	assert.True(t, cancel())
}

func TestBucket_ConsumeAsync_PoolScheduler(t *testing.T) {
	cfg := MustConfiguration(SystemNanotime, Limited(Constant(1000), time.Second).WithInitialTokens(0))
	b := NewLockFree(cfg)
	scheduler, err := NewPoolScheduler(2)
	require.NoError(t, err)
	defer scheduler.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := b.ConsumeAsync(ctx, 10, scheduler).Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompletedFuture(t *testing.T) {
	f := CompletedFuture(true, nil)
	select {
	case <-f.Done():
	default:
		t.Fatal("future should be done")
	}
	ok, err := f.Get(context.Background())
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.False(t, f.Cancel())

	ok, err = CompletedFuture(false, ErrNonPositiveTokens).Get(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNonPositiveTokens)
}

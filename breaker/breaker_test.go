package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type transition struct{ from, to State }

func newTestBreaker(t *testing.T, cfg Config) (*Breaker, *fakeClock, *[]transition) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var changes []transition
	log, _ := logger.NewObservedLogger("breaker")
	b := New("redis", cfg,
		WithClock(clock.Now),
		WithLogger(log),
		WithStateListener(func(name string, from, to State) {
			assert.Equal(t, "redis", name)
			changes = append(changes, transition{from, to})
		}))
	return b, clock, &changes
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _, changes := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 3, OpenTimeout: time.Second})
	ctx := context.Background()

	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	// 成功一次清零
	assert.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	counts := b.Counts()
	assert.Equal(t, int64(6), counts.Requests)
	assert.Equal(t, int64(5), counts.TotalFailures)
	assert.Equal(t, int64(1), counts.Rejected)
	assert.Equal(t, []transition{{StateClosed, StateOpen}}, *changes)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b, clock, changes := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second, HalfOpenRequests: 2})
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clock.Advance(999 * time.Millisecond)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen)

	clock.Advance(time.Millisecond)
	assert.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, *changes)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock, _ := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clock.Advance(time.Second)
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State())

	// 重新计时
	clock.Advance(500 * time.Millisecond)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen)
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	b, clock, _ := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second, HalfOpenRequests: 1})
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clock.Advance(time.Second)

	probing := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing

	assert.ErrorIs(t, b.Do(ctx, succeed), ErrTooManyRequests)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StaleResultIgnored(t *testing.T) {
	b, _, _ := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	require.Error(t, b.Do(ctx, fail))
	require.Equal(t, StateOpen, b.State())

	// 熔断前发出的请求晚到的成功不会关闭熔断器
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_ContextCanceledNotCounted(t *testing.T) {
	b, _, _ := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1})
	err := b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CustomIsFailure(t *testing.T) {
	errConflict := errors.New("conflict")
	b := New("etcd", Config{Enabled: true, FailureThreshold: 1},
		WithIsFailure(func(err error) bool { return err != nil && !errors.Is(err, errConflict) }))

	_ = b.Do(context.Background(), func(context.Context) error { return errConflict })
	assert.Equal(t, StateClosed, b.State())
	_ = b.Do(context.Background(), fail)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, "etcd", b.Name())
}

func TestBreaker_Reset(t *testing.T) {
	b, _, changes := newTestBreaker(t, Config{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Hour})
	require.Error(t, b.Do(context.Background(), fail))

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Do(context.Background(), succeed))
	assert.Len(t, *changes, 2)

	// closed 时 Reset 不产生事件
	b.Reset()
	assert.Len(t, *changes, 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestConfig(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultConfig().FailureThreshold, cfg.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.OpenTimeout)
	assert.NoError(t, cfg.Validate())

	bad := Config{Enabled: true, FailureThreshold: 0, OpenTimeout: time.Microsecond, HalfOpenRequests: 1}
	err := validator.Validate(bad, ErrInvalidConfig)
	require.Error(t, err)
	assert.Equal(t, []string{"failure_threshold", "open_timeout"}, validator.Fields(err))

	assert.NoError(t, Config{FailureThreshold: -1}.Validate())
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestManager(t *testing.T, names ...string) (*Manager, map[string]*miniredis.Miniredis) {
	t.Helper()
	configs := make(map[string]Config)
	servers := make(map[string]*miniredis.Miniredis)
	for _, name := range names {
		mr := miniredis.RunT(t)
		servers[name] = mr
		configs[name] = Config{Addr: mr.Addr()}
	}
	log, _ := logger.NewObservedLogger("redis")
	m, err := NewManager(context.Background(), configs, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, servers
}

func TestManager_Instances(t *testing.T) {
	ctx := context.Background()
	m, servers := newTestManager(t, "main", "cache")

	assert.Equal(t, []string{"cache", "main"}, m.Names())
	require.NotNil(t, m.Client("main"))
	assert.Nil(t, m.Cluster("main"))
	assert.Nil(t, m.Client("missing"))

	require.NoError(t, m.Client("main").Set(ctx, "k", "v", 0).Err())
	got, err := servers["main"].Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.False(t, servers["cache"].Exists("k"))

	client, ok := m.Universal("cache")
	require.True(t, ok)
	assert.NoError(t, client.Ping(ctx).Err())

	_, ok = m.Universal("missing")
	assert.False(t, ok)

	assert.NoError(t, m.Ping(ctx))
}

func TestManager_PingFailure(t *testing.T) {
	m, servers := newTestManager(t, "main")
	servers["main"].Close()

	err := m.Ping(context.Background())
	assert.ErrorContains(t, err, "main")
}

func TestNewManager_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewManager(ctx, map[string]Config{"bad": {Mode: "sentinel", Addr: "a:1"}}, nil)
	assert.ErrorContains(t, err, "invalid redis config bad")

	_, err = NewManager(ctx, map[string]Config{"down": {
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}}, nil)
	assert.ErrorContains(t, err, "ping redis down failed")
}

func TestManager_Close(t *testing.T) {
	m, _ := newTestManager(t, "main")
	client := m.Client("main")

	require.NoError(t, m.Shutdown())
	assert.Empty(t, m.Names())
	assert.Nil(t, m.Client("main"))
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestManager_Instrument(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, "main")

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	require.NoError(t, m.Instrument(meter))
	require.NoError(t, m.Instrument(meter))

	client := m.Client("main")
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	assert.ErrorIs(t, client.Get(ctx, "missing").Err(), redis.Nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	// 按 metric 名 + command 属性汇总
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					command, _ := dp.Attributes.Value("command")
					totals[md.Name+":"+command.AsString()] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), totals["redis_commands_total:set"])
	assert.Equal(t, int64(1), totals["redis_commands_total:get"])
	assert.Zero(t, totals["redis_command_errors_total:get"])
}

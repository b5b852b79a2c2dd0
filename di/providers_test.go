package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/KOMKZ/go-yogan-bucket/breaker"
	"github.com/KOMKZ/go-yogan-bucket/database"
	"github.com/KOMKZ/go-yogan-bucket/health"
	"github.com/KOMKZ/go-yogan-bucket/kafka"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/redis"
	"github.com/KOMKZ/go-yogan-bucket/swagger"
	"github.com/KOMKZ/go-yogan-bucket/telemetry"
	"github.com/alicebob/miniredis/v2"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginResource = "/auth.AuthService/Login"

func newTestInjector(t *testing.T, overrides map[string]interface{}) *do.RootScope {
	t.Helper()
	previous := logger.SetManager(logger.NewManager(logger.DefaultManagerConfig()))
	injector := NewInjector(ConfigOptions{
		ConfigFile: "testdata/config.yaml",
		Overrides:  overrides,
	})
	t.Cleanup(func() {
		_ = injector.Shutdown()
		logger.SetManager(previous)
	})
	return injector
}

func drain(t *testing.T, lm *limiter.Manager, resource string) int {
	t.Helper()
	granted := 0
	for i := 0; i < 10; i++ {
		ok, err := lm.Allow(context.Background(), resource)
		require.NoError(t, err)
		if ok {
			granted++
		}
	}
	return granted
}

func TestInjector_MemoryLimiter(t *testing.T) {
	injector := newTestInjector(t, nil)

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	assert.True(t, lm.IsEnabled())
	assert.Equal(t, limiter.StoreTypeMemory, lm.GetConfig().StoreType)
	assert.Equal(t, 5, drain(t, lm, loginResource))

	rm, err := do.Invoke[*redis.Manager](injector)
	require.NoError(t, err)
	assert.Nil(t, rm)

	agg, err := do.Invoke[*health.Aggregator](injector)
	require.NoError(t, err)
	resp := agg.Check(context.Background())
	assert.True(t, resp.IsHealthy())
	assert.Empty(t, resp.Checks)
	assert.Equal(t, limiter.StoreTypeMemory, resp.Metadata["store_type"])
}

func TestInjector_LoggerFromConfig(t *testing.T) {
	injector := newTestInjector(t, nil)

	mgr, err := do.Invoke[*logger.Manager](injector)
	require.NoError(t, err)
	assert.Equal(t, "debug", mgr.Config().Level)

	log, err := do.Invoke[*logger.CtxZapLogger](injector)
	require.NoError(t, err)
	assert.Equal(t, "bucket", log.Module())
	assert.Same(t, mgr.GetLogger("bucket"), log)
}

func TestInjector_RedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	injector := newTestInjector(t, map[string]interface{}{
		"redis": map[string]interface{}{
			"instances": map[string]interface{}{
				"main": map[string]interface{}{"addr": mr.Addr()},
			},
		},
		"limiter": map[string]interface{}{
			"store_type": "redis",
			"redis":      map[string]interface{}{"instance": "main"},
		},
	})

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	assert.Equal(t, 5, drain(t, lm, loginResource))
	assert.Contains(t, mr.Keys(), "limiter:"+loginResource)

	agg, err := do.Invoke[*health.Aggregator](injector)
	require.NoError(t, err)
	assert.True(t, agg.Check(context.Background()).IsHealthy())

	mr.Close()
	resp := agg.Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, health.StatusUnhealthy, resp.Checks["redis"].Status)
}

func TestInjector_StoreBreakerHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	injector := newTestInjector(t, map[string]interface{}{
		"redis": map[string]interface{}{
			"instances": map[string]interface{}{
				"main": map[string]interface{}{"addr": mr.Addr()},
			},
		},
		"limiter": map[string]interface{}{
			"store_type":     "redis",
			"failure_policy": "fail_open",
			"redis":          map[string]interface{}{"instance": "main"},
			"breaker": map[string]interface{}{
				"enabled":           true,
				"failure_threshold": 1,
				"open_timeout":      "1h",
			},
		},
	})

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	require.NotNil(t, lm.StoreBreaker())

	agg, err := do.Invoke[*health.Aggregator](injector)
	require.NoError(t, err)
	resp := agg.Check(context.Background())
	assert.True(t, resp.IsHealthy())
	assert.Equal(t, health.StatusHealthy, resp.Checks["store_breaker"].Status)

	mr.SetError("ERR store down")
	ok, err := lm.Allow(context.Background(), loginResource)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, breaker.StateOpen, lm.StoreBreaker().State())

	mr.SetError("")
	resp = agg.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, resp.Status)
	assert.Equal(t, health.StatusDegraded, resp.Checks["store_breaker"].Status)
}

func TestInjector_RedisInstanceMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	injector := newTestInjector(t, map[string]interface{}{
		"redis": map[string]interface{}{
			"instances": map[string]interface{}{
				"main": map[string]interface{}{"addr": mr.Addr()},
			},
		},
		"limiter": map[string]interface{}{
			"store_type": "redis",
			"redis":      map[string]interface{}{"instance": "cache"},
		},
	})

	_, err := do.Invoke[*limiter.Manager](injector)
	require.Error(t, err)
	assert.ErrorIs(t, err, limiter.ErrStoreNotSupported)
}

func TestInjector_RedisNotConfigured(t *testing.T) {
	injector := newTestInjector(t, map[string]interface{}{
		"limiter": map[string]interface{}{
			"store_type": "redis",
			"redis":      map[string]interface{}{"instance": "main"},
		},
	})

	_, err := do.Invoke[*limiter.Manager](injector)
	assert.ErrorIs(t, err, limiter.ErrStoreNotSupported)
}

func TestInjector_DatabaseLimiter(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "bucket.db")
	injector := newTestInjector(t, map[string]interface{}{
		"database": map[string]interface{}{
			"connections": map[string]interface{}{
				"master": map[string]interface{}{
					"driver": database.DriverSQLite,
					"dsn":    dsn,
				},
			},
		},
		"limiter": map[string]interface{}{
			"store_type": "database",
			"database":   map[string]interface{}{"instance": "master"},
		},
	})

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	assert.Equal(t, 5, drain(t, lm, loginResource))

	dm, err := do.Invoke[*database.Manager](injector)
	require.NoError(t, err)
	var count int64
	require.NoError(t, dm.DB("master").Table("bucket_states").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	agg, err := do.Invoke[*health.Aggregator](injector)
	require.NoError(t, err)
	resp := agg.Check(context.Background())
	assert.True(t, resp.IsHealthy())
	assert.Contains(t, resp.Checks, "database")
}

func TestInjector_TelemetryEnablesLimiterMetrics(t *testing.T) {
	injector := newTestInjector(t, map[string]interface{}{
		"telemetry": map[string]interface{}{
			"enabled":  true,
			"exporter": map[string]interface{}{"type": "noop"},
		},
	})

	tm, err := do.Invoke[*telemetry.Manager](injector)
	require.NoError(t, err)
	assert.True(t, tm.MetricsEnabled("limiter"))

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	assert.Equal(t, 5, drain(t, lm, loginResource))

	snapshot := lm.GetMetrics(loginResource)
	require.NotNil(t, snapshot)
	assert.Equal(t, int64(5), snapshot.Allowed)
}

func TestInjector_LimiterDisabled(t *testing.T) {
	injector := newTestInjector(t, map[string]interface{}{
		"limiter": map[string]interface{}{"enabled": false},
	})

	lm, err := do.Invoke[*limiter.Manager](injector)
	require.NoError(t, err)
	assert.False(t, lm.IsEnabled())
	assert.Equal(t, 10, drain(t, lm, loginResource))
}

func TestInjector_EventSinkDisabled(t *testing.T) {
	injector := newTestInjector(t, nil)

	sink, err := do.Invoke[*kafka.EventSink](injector)
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestInjector_EventSinkInvalid(t *testing.T) {
	injector := newTestInjector(t, map[string]interface{}{
		"kafka": map[string]interface{}{"enabled": true},
	})

	_, err := do.Invoke[*kafka.EventSink](injector)
	require.Error(t, err)
	assert.ErrorIs(t, err, kafka.ErrInvalidConfig)
}

func TestInjector_SwaggerManager(t *testing.T) {
	injector := newTestInjector(t, nil)
	sm, err := do.Invoke[*swagger.Manager](injector)
	require.NoError(t, err)
	assert.False(t, sm.IsEnabled())

	injector = newTestInjector(t, map[string]interface{}{
		"swagger": map[string]interface{}{"enabled": true, "doc_expansion": "none"},
	})
	sm, err = do.Invoke[*swagger.Manager](injector)
	require.NoError(t, err)
	assert.True(t, sm.IsEnabled())
	assert.Equal(t, "none", sm.GetConfig().DocExpansion)
	assert.Equal(t, "/openapi.json", sm.GetConfig().SpecPath)
}

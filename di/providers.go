// Package di 基于 samber/do 组装限流服务的各个组件
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/breaker"
	"github.com/KOMKZ/go-yogan-bucket/config"
	"github.com/KOMKZ/go-yogan-bucket/database"
	"github.com/KOMKZ/go-yogan-bucket/health"
	"github.com/KOMKZ/go-yogan-bucket/kafka"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/redis"
	"github.com/KOMKZ/go-yogan-bucket/swagger"
	"github.com/KOMKZ/go-yogan-bucket/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

const meterName = "github.com/KOMKZ/go-yogan-bucket"

// ConfigOptions 配置加载选项
type ConfigOptions struct {
	ConfigPath string                 // 配置目录，读取 config.yaml 和 {env}.yaml
	ConfigFile string                 // 单个配置文件，必须存在
	EnvPrefix  string                 // 环境变量前缀，如 BUCKET
	Overrides  map[string]interface{} // 最高优先级，一般来自命令行
}

// ProvideConfigLoader 无依赖
func ProvideConfigLoader(opts ConfigOptions) func(do.Injector) (*config.Loader, error) {
	return func(do.Injector) (*config.Loader, error) {
		return config.NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithConfigFile(opts.ConfigFile).
			WithEnvPrefix(opts.EnvPrefix).
			WithOverrides(opts.Overrides).
			Build()
	}
}

// ProvideLoggerManager 读取 logger 配置段，并替换全局 Manager
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg := logger.DefaultManagerConfig()
	if loader, err := do.Invoke[*config.Loader](i); err == nil && loader.IsSet("logger") {
		if err := loader.UnmarshalKey("logger", &cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	m := logger.NewManager(cfg)
	logger.SetManager(m)
	return m, nil
}

// ProvideCtxLogger 模块 logger，Manager 不可用时回退到全局
func ProvideCtxLogger(module string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			return logger.GetLogger(module), nil
		}
		return mgr.GetLogger(module), nil
	}
}

// moduleLogger 从 Manager 取模块 logger
func moduleLogger(i do.Injector, module string) *logger.CtxZapLogger {
	if mgr, err := do.Invoke[*logger.Manager](i); err == nil {
		return mgr.GetLogger(module)
	}
	return logger.GetLogger(module)
}

// ProvideTelemetryManager 读取 telemetry 配置段并启动 Provider
func ProvideTelemetryManager(i do.Injector) (*telemetry.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	cfg := telemetry.DefaultConfig()
	if err := loader.UnmarshalKey("telemetry", &cfg); err != nil {
		return nil, err
	}

	m := telemetry.NewManager(cfg, moduleLogger(i, "telemetry"))
	if err := m.Start(context.Background()); err != nil {
		return nil, err
	}
	return m, nil
}

// ProvideRedisManager 未配置 redis.instances 时返回 nil
func ProvideRedisManager(i do.Injector) (*redis.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	var configs map[string]redis.Config
	if err := loader.UnmarshalKey("redis.instances", &configs); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, nil
	}

	mgr, err := redis.NewManager(context.Background(), configs, moduleLogger(i, "redis"))
	if err != nil {
		return nil, err
	}

	if tm, err := do.Invoke[*telemetry.Manager](i); err == nil && tm.MetricsEnabled("redis") {
		if err := mgr.Instrument(tm.Meter(meterName + "/redis")); err != nil {
			_ = mgr.Close()
			return nil, err
		}
	}
	return mgr, nil
}

// ProvideDatabaseManager 未配置 database.connections 时返回 nil
func ProvideDatabaseManager(i do.Injector) (*database.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	var configs map[string]database.Config
	if err := loader.UnmarshalKey("database.connections", &configs); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, nil
	}

	opts := []database.Option{
		database.WithLogger(moduleLogger(i, "database")),
		database.WithGormLoggerFactory(database.DefaultLoggerFactory(moduleLogger(i, "sql"))),
	}
	if tm, err := do.Invoke[*telemetry.Manager](i); err == nil && tm.IsEnabled() {
		opts = append(opts, database.WithTracerProvider(tm.TracerProvider()))
	}
	return database.NewManager(context.Background(), configs, opts...)
}

// ProvideLimiterManager 按 store_type 解析所需的 redis 实例或数据库连接
func ProvideLimiterManager(i do.Injector) (*limiter.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	cfg := limiter.DefaultConfig()
	if err := loader.UnmarshalKey("limiter", &cfg); err != nil {
		return nil, err
	}

	log := moduleLogger(i, "limiter")
	opts := []limiter.Option{limiter.WithLogger(log)}

	if cfg.Enabled {
		switch cfg.StoreType {
		case limiter.StoreTypeRedis:
			mgr, err := do.Invoke[*redis.Manager](i)
			if err != nil {
				return nil, err
			}
			if mgr == nil {
				return nil, limiter.ErrStoreNotSupported.WithMsg("redis store requires redis.instances")
			}
			client, ok := mgr.Universal(cfg.Redis.Instance)
			if !ok {
				return nil, limiter.ErrStoreNotSupported.WithMsgf("redis instance %q not configured", cfg.Redis.Instance)
			}
			opts = append(opts, limiter.WithRedisClient(client))

		case limiter.StoreTypeDatabase:
			mgr, err := do.Invoke[*database.Manager](i)
			if err != nil {
				return nil, err
			}
			if mgr == nil {
				return nil, limiter.ErrStoreNotSupported.WithMsg("database store requires database.connections")
			}
			db := mgr.DB(cfg.Database.Instance)
			if db == nil {
				return nil, limiter.ErrStoreNotSupported.WithMsgf("database connection %q not configured", cfg.Database.Instance)
			}
			opts = append(opts, limiter.WithDB(db))
		}

		if tm, err := do.Invoke[*telemetry.Manager](i); err == nil && tm.MetricsEnabled("limiter") {
			cfg.Metrics.Enabled = true
			opts = append(opts, limiter.WithMeter(tm.Meter(meterName+"/limiter"), cfg.Metrics))
		}
	}

	mgr, err := limiter.NewManager(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log.InfoCtx(context.Background(), "✅ limiter ready",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("store_type", cfg.StoreType))
	return mgr, nil
}

// ProvideHealthAggregator 限流存储依赖的 redis/数据库为关键项，其余为非关键项
func ProvideHealthAggregator(i do.Injector) (*health.Aggregator, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	timeout := loader.GetDuration("health.timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	agg := health.NewAggregator(timeout)

	storeType := limiter.StoreTypeMemory
	if lm, err := do.Invoke[*limiter.Manager](i); err == nil && lm.IsEnabled() {
		storeType = lm.GetConfig().StoreType
		if cb := lm.StoreBreaker(); cb != nil {
			agg.Register(health.NewOptionalChecker("store_breaker", func(context.Context) error {
				if cb.State() == breaker.StateOpen {
					return breaker.ErrOpen.WithData("name", cb.Name())
				}
				return nil
			}))
		}
	}
	agg.SetMetadata("store_type", storeType)

	if mgr, err := do.Invoke[*redis.Manager](i); err == nil && mgr != nil {
		agg.Register(newChecker("redis", storeType == limiter.StoreTypeRedis, mgr.Ping))
	}
	if mgr, err := do.Invoke[*database.Manager](i); err == nil && mgr != nil {
		agg.Register(newChecker("database", storeType == limiter.StoreTypeDatabase, mgr.Ping))
	}
	return agg, nil
}

func newChecker(name string, critical bool, check func(context.Context) error) health.Checker {
	if critical {
		return health.NewChecker(name, check)
	}
	return health.NewOptionalChecker(name, check)
}

// ProvideSwaggerManager 读取 swagger 配置段，未启用时路由注册为空操作
func ProvideSwaggerManager(i do.Injector) (*swagger.Manager, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	cfg := swagger.DefaultConfig()
	if loader.IsSet("swagger") {
		if err := loader.UnmarshalKey("swagger", &cfg); err != nil {
			return nil, err
		}
	}
	return swagger.NewManager(cfg, moduleLogger(i, "swagger"))
}

// ProvideEventSink kafka.enabled 为 false 时返回 nil，否则订阅限流事件总线
func ProvideEventSink(i do.Injector) (*kafka.EventSink, error) {
	loader, err := do.Invoke[*config.Loader](i)
	if err != nil {
		return nil, err
	}

	cfg := kafka.DefaultConfig()
	if err := loader.UnmarshalKey("kafka", &cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	lm, err := do.Invoke[*limiter.Manager](i)
	if err != nil {
		return nil, err
	}
	sink, err := kafka.NewEventSink(cfg, moduleLogger(i, "kafka"))
	if err != nil {
		return nil, err
	}
	if bus := lm.GetEventBus(); bus != nil {
		bus.Subscribe(sink)
	}
	return sink, nil
}

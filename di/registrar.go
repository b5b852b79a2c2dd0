package di

import (
	"github.com/samber/do/v2"
)

// RegisterCoreProviders 按依赖层级注册，全部懒加载
func RegisterCoreProviders(injector do.Injector, opts ConfigOptions) {
	// Layer 0: 配置
	do.Provide(injector, ProvideConfigLoader(opts))

	// Layer 1: 日志、遥测
	do.Provide(injector, ProvideLoggerManager)
	do.Provide(injector, ProvideCtxLogger("bucket"))
	do.Provide(injector, ProvideTelemetryManager)

	// Layer 2: 存储
	do.Provide(injector, ProvideRedisManager)
	do.Provide(injector, ProvideDatabaseManager)

	// Layer 3: 限流、健康检查
	do.Provide(injector, ProvideLimiterManager)
	do.Provide(injector, ProvideHealthAggregator)
	do.Provide(injector, ProvideEventSink)

	// Layer 4: 接入层
	do.Provide(injector, ProvideSwaggerManager)
}

// NewInjector 创建根注入器并注册核心 Provider
func NewInjector(opts ConfigOptions) *do.RootScope {
	injector := do.New()
	RegisterCoreProviders(injector, opts)
	return injector
}

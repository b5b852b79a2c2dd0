package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/breaker"
	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"github.com/KOMKZ/go-yogan-bucket/grid"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager 限流管理器
type Manager struct {
	config    Config
	meter     bucket.TimeMeter
	backend   backend
	limiters  map[string]*rateLimiter
	eventBus  EventBus
	otel      *OTelMetrics
	scheduler bucket.Scheduler
	release   func()
	janitor   gocron.Scheduler
	logger    *logger.CtxZapLogger
	closed    bool
	mu        sync.RWMutex
}

// rateLimiter 单个资源
type rateLimiter struct {
	resource string
	config   ResourceConfig
	bucket   *bucket.Bucket
	metrics  MetricsCollector
	lastUsed atomic.Int64 // TimeMeter 读数
}

func (l *rateLimiter) touch(now int64) {
	l.lastUsed.Store(now)
}

// Option NewManager 选项
type Option func(*managerOptions)

func WithLogger(l *logger.CtxZapLogger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithRedisClient redis 存储使用的客户端
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *managerOptions) { o.redisClient = client }
}

// WithDB database 存储使用的连接
func WithDB(db *gorm.DB) Option {
	return func(o *managerOptions) { o.db = db }
}

// WithEtcdKV 复用已有的 etcd 客户端，不设置时按 Config.Etcd 新建
func WithEtcdKV(kv clientv3.KV) Option {
	return func(o *managerOptions) { o.etcdKV = kv }
}

// WithTimeMeter 覆盖 Config.TimePrecision 选出的时钟
func WithTimeMeter(meter bucket.TimeMeter) Option {
	return func(o *managerOptions) { o.timeMeter = meter }
}

// WithScheduler AcquireAsync 使用的调度器，不设置时使用 ants 协程池
func WithScheduler(s bucket.Scheduler) Option {
	return func(o *managerOptions) { o.scheduler = s }
}

// WithMeter 在 meter 上注册 OTel 指标
func WithMeter(meter metric.Meter, cfg MetricsConfig) Option {
	return func(o *managerOptions) {
		m := NewOTelMetrics(cfg)
		if cfg.Enabled {
			if err := m.RegisterMetrics(meter); err != nil {
				logger.GetLogger("limiter").ErrorCtx(context.Background(), "register limiter metrics failed", zap.Error(err))
			}
		}
		o.metrics = m
	}
}

// NewManager 创建限流管理器
func NewManager(config Config, opts ...Option) (*Manager, error) {
	o := &managerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger("limiter")
	}
	ctx := context.Background()

	if err := validator.Validate(&config, ErrInvalidConfig); err != nil {
		return nil, err
	}

	m := &Manager{
		config:   config,
		limiters: make(map[string]*rateLimiter),
		logger:   o.logger,
		otel:     o.metrics,
	}

	if !config.Enabled {
		o.logger.DebugCtx(ctx, "⏭️  limiter disabled, all calls pass through")
		return m, nil
	}

	m.meter = o.timeMeter
	if m.meter == nil {
		m.meter = config.TimeMeter()
	}
	if m.otel == nil {
		m.otel = NewOTelMetrics(config.Metrics)
		if config.Metrics.Enabled {
			if err := m.otel.RegisterMetrics(otel.Meter("github.com/KOMKZ/go-yogan-bucket/limiter")); err != nil {
				return nil, err
			}
		}
	}

	m.eventBus = NewEventBus(config.EventBusBuffer, o.logger)

	be, err := newBackend(ctx, config, o, m.onRestored, o.logger)
	if err != nil {
		m.eventBus.Close()
		return nil, err
	}
	m.backend = be

	m.scheduler = o.scheduler
	if m.scheduler == nil {
		pool, err := bucket.NewPoolScheduler(config.AsyncPoolSize)
		if err != nil {
			m.eventBus.Close()
			_ = be.Close()
			return nil, err
		}
		m.scheduler, m.release = pool, pool.Release
	}

	if config.IdleTTL > 0 {
		if err := m.startJanitor(); err != nil {
			_ = m.Close()
			return nil, err
		}
	}

	o.logger.DebugCtx(ctx, "🎯 limiter manager initialized",
		zap.String("store_type", config.StoreType),
		zap.String("time_precision", config.TimePrecision),
		zap.Int("resources", len(config.Resources)),
		zap.Int("event_bus_buffer", config.EventBusBuffer))

	return m, nil
}

// Allow 取 1 个令牌
func (m *Manager) Allow(ctx context.Context, resource string) (bool, error) {
	return m.AllowN(ctx, resource, 1)
}

// AllowN 取 n 个令牌，不等待
func (m *Manager) AllowN(ctx context.Context, resource string, n int64) (bool, error) {
	if !m.config.Enabled {
		return true, nil
	}

	limiter, err := m.getOrCreateLimiter(ctx, resource)
	if errors.Is(err, ErrResourceNotFound) {
		m.logger.DebugCtx(ctx, "🔓 resource not configured and no default, pass through",
			zap.String("resource", resource))
		return true, nil
	}
	if err != nil {
		if m.failOpen(ctx, resource, err) {
			return true, nil
		}
		return false, err
	}

	ok, err := limiter.bucket.TryConsume(ctx, n)
	if err != nil {
		if m.failOpen(ctx, resource, err) {
			return true, nil
		}
		return false, err
	}

	if ok {
		m.recordAllowed(ctx, limiter, n)
	} else {
		m.recordRejected(ctx, limiter, n, "limit exceeded")
	}
	return ok, nil
}

// Wait 等待 1 个令牌
func (m *Manager) Wait(ctx context.Context, resource string) error {
	return m.WaitN(ctx, resource, 1)
}

// WaitN 在资源的 WaitTimeout 内等待 n 个令牌。
// 预计等待超出预算时立即返回 ErrWaitTimeout，不会空等到超时。
func (m *Manager) WaitN(ctx context.Context, resource string, n int64) error {
	if !m.config.Enabled {
		return nil
	}

	limiter, err := m.getOrCreateLimiter(ctx, resource)
	if errors.Is(err, ErrResourceNotFound) {
		return nil
	}
	if err != nil {
		if m.failOpen(ctx, resource, err) {
			return nil
		}
		return err
	}

	m.publish(&WaitEvent{BaseEvent: NewBaseEvent(EventWaitStart, resource, ctx), Tokens: n})

	start := m.meter.CurrentTimeNanos()
	ok, err := limiter.bucket.TryConsumeAndWait(ctx, n, m.waitTimeout(limiter))
	waited := time.Duration(m.meter.CurrentTimeNanos() - start)

	switch {
	case errors.Is(err, bucket.ErrInterrupted):
		m.publish(&WaitEvent{BaseEvent: NewBaseEvent(EventWaitInterrupted, resource, ctx), Tokens: n, Waited: waited})
		limiter.metrics.RecordRejected()
		m.otel.RecordRejected(ctx, resource, "interrupted")
		return err
	case err != nil:
		if m.failOpen(ctx, resource, err) {
			return nil
		}
		return err
	case !ok:
		m.publish(&WaitEvent{BaseEvent: NewBaseEvent(EventWaitTimeout, resource, ctx), Tokens: n, Waited: waited})
		limiter.metrics.RecordRejected()
		m.otel.RecordRejected(ctx, resource, "wait timeout")
		return ErrWaitTimeout.WithData("resource", resource)
	}

	m.publish(&WaitEvent{BaseEvent: NewBaseEvent(EventWaitSuccess, resource, ctx), Tokens: n, Success: true, Waited: waited})
	limiter.metrics.RecordAllowed()
	m.otel.RecordAllowed(ctx, resource)
	return nil
}

// AcquireAsync 异步等待 n 个令牌，预算同 WaitN；只记录令牌级指标
func (m *Manager) AcquireAsync(ctx context.Context, resource string, n int64) *bucket.Future {
	if !m.config.Enabled {
		return bucket.CompletedFuture(true, nil)
	}

	limiter, err := m.getOrCreateLimiter(ctx, resource)
	if errors.Is(err, ErrResourceNotFound) {
		return bucket.CompletedFuture(true, nil)
	}
	if err != nil {
		return bucket.CompletedFuture(false, err)
	}
	return limiter.bucket.TryConsumeAsync(ctx, n, m.waitTimeout(limiter), m.scheduler)
}

// Available 当前可用令牌数
func (m *Manager) Available(ctx context.Context, resource string) (int64, error) {
	b, err := m.Bucket(ctx, resource)
	if err != nil {
		return 0, err
	}
	return b.AvailableTokens(ctx)
}

// Bucket 资源对应的 bucket；未启用或资源未配置时返回 ErrResourceNotFound
func (m *Manager) Bucket(ctx context.Context, resource string) (*bucket.Bucket, error) {
	if !m.config.Enabled {
		return nil, ErrResourceNotFound.WithMsgf("limiter disabled, no bucket for %q", resource)
	}
	limiter, err := m.getOrCreateLimiter(ctx, resource)
	if err != nil {
		return nil, err
	}
	return limiter.bucket, nil
}

// GetMetrics 指标快照；资源还没有 bucket 时只有 Resource 字段
func (m *Manager) GetMetrics(resource string) *MetricsSnapshot {
	m.mu.RLock()
	limiter, exists := m.limiters[resource]
	m.mu.RUnlock()

	if !exists {
		return &MetricsSnapshot{Resource: resource}
	}

	snapshot := limiter.metrics.GetSnapshot()
	snapshot.Capacity = int64(limiter.bucket.Configuration().MaxTokens())
	if available, err := limiter.bucket.AvailableTokens(context.Background()); err == nil {
		snapshot.Available = available
	}
	return snapshot
}

func (m *Manager) GetEventBus() EventBus {
	return m.eventBus
}

// Reset 恢复为初始状态（共享存储时影响所有实例）
func (m *Manager) Reset(ctx context.Context, resource string) error {
	m.mu.RLock()
	limiter, exists := m.limiters[resource]
	m.mu.RUnlock()

	if !exists {
		return nil
	}

	cfg := limiter.bucket.Configuration()
	if err := limiter.bucket.ApplySnapshot(ctx, bucket.NewInitialState(cfg)); err != nil {
		return err
	}
	limiter.metrics.Reset()
	return nil
}

// Close 释放资源，可重复调用
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.janitor != nil {
		if err := m.janitor.Shutdown(); err != nil {
			m.logger.WarnCtx(context.Background(), "janitor shutdown failed", zap.Error(err))
		}
	}
	if m.eventBus != nil {
		m.eventBus.Close()
	}
	if m.release != nil {
		m.release()
	}
	if m.backend != nil {
		return m.backend.Close()
	}
	return nil
}

// Shutdown 实现 samber/do 的 Shutdowner
func (m *Manager) Shutdown() error {
	return m.Close()
}

func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

func (m *Manager) GetConfig() Config {
	return m.config
}

// StoreBreaker 远端存储的熔断器，内存存储或未启用时为 nil
func (m *Manager) StoreBreaker() *breaker.Breaker {
	if gb, ok := m.backend.(*gridBackend); ok {
		return gb.breaker
	}
	return nil
}

// failOpen fail_open 策略下存储不可用时放行
func (m *Manager) failOpen(ctx context.Context, resource string, err error) bool {
	if m.config.FailurePolicy != FailOpen {
		return false
	}
	if !errors.Is(err, grid.ErrStoreFailure) &&
		!errors.Is(err, breaker.ErrOpen) &&
		!errors.Is(err, breaker.ErrTooManyRequests) {
		return false
	}
	m.logger.WarnCtx(ctx, "⚠️  store unavailable, request allowed by fail_open policy",
		zap.String("resource", resource),
		zap.Error(err))
	m.otel.RecordAllowed(ctx, resource)
	return true
}

func (m *Manager) waitTimeout(l *rateLimiter) time.Duration {
	if l.config.WaitTimeout > 0 {
		return l.config.WaitTimeout
	}
	return time.Second
}

func (m *Manager) getOrCreateLimiter(ctx context.Context, resource string) (*rateLimiter, error) {
	// 持读锁时刷新使用时间，EvictIdle 持写锁检查
	m.mu.RLock()
	limiter, exists := m.limiters[resource]
	closed := m.closed
	if exists && !closed {
		limiter.touch(m.meter.CurrentTimeNanos())
	}
	m.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if exists {
		return limiter, nil
	}

	rc, ok := m.config.GetResourceConfig(resource)
	if !ok {
		return nil, ErrResourceNotFound.WithMsgf("resource %q not configured", resource)
	}
	cfg, err := rc.Build(m.meter)
	if err != nil {
		return nil, err
	}

	// 远端存储需要一次往返写入初始状态，放在锁外
	metrics := NewMetricsCollector(resource)
	b, err := m.backend.NewBucket(ctx, resource, cfg,
		bucket.WithLogger(m.logger),
		bucket.WithStatistic(bucket.MultiStatistic(metrics, m.otel.Statistic(resource))),
	)
	if err != nil {
		return nil, err
	}
	created := &rateLimiter{resource: resource, config: rc, bucket: b, metrics: metrics}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if limiter, exists := m.limiters[resource]; exists {
		limiter.touch(m.meter.CurrentTimeNanos())
		return limiter, nil
	}
	created.touch(m.meter.CurrentTimeNanos())
	m.limiters[resource] = created
	m.otel.RegisterTokenCallback(resource, func() int64 {
		available, _ := b.AvailableTokens(context.Background())
		return available
	})

	m.logger.DebugCtx(ctx, "🎯 bucket created",
		zap.String("resource", resource),
		zap.Stringer("configuration", cfg))
	return created, nil
}

func (m *Manager) recordAllowed(ctx context.Context, l *rateLimiter, n int64) {
	l.metrics.RecordAllowed()
	m.otel.RecordAllowed(ctx, l.resource)
	m.publish(&AllowedEvent{BaseEvent: NewBaseEvent(EventAllowed, l.resource, ctx), Tokens: n})
}

func (m *Manager) recordRejected(ctx context.Context, l *rateLimiter, n int64, reason string) {
	l.metrics.RecordRejected()
	m.otel.RecordRejected(ctx, l.resource, reason)
	m.publish(&RejectedEvent{BaseEvent: NewBaseEvent(EventRejected, l.resource, ctx), Tokens: n, Reason: reason})
}

func (m *Manager) publish(event Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// onRestored 远端状态丢失时由 grid 回调
func (m *Manager) onRestored(ctx context.Context, key string) {
	m.publish(&StateRestoredEvent{BaseEvent: NewBaseEvent(EventStateRestored, key, ctx), Key: key})
}

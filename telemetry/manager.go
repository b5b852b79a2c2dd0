// Package telemetry 创建 trace / metrics 的 Provider，供 limiter、redis、database 使用
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Manager OpenTelemetry 管理器
type Manager struct {
	config Config
	logger *logger.CtxZapLogger
	writer io.Writer
	global bool

	mu             sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	started        bool
}

type Option func(*Manager)

// WithWriter stdout 导出器的输出目标，默认 os.Stdout
func WithWriter(w io.Writer) Option {
	return func(m *Manager) { m.writer = w }
}

// WithGlobal 启动后是否注册为 otel 全局 Provider，默认 true
func WithGlobal(enabled bool) Option {
	return func(m *Manager) { m.global = enabled }
}

func NewManager(cfg Config, log *logger.CtxZapLogger, opts ...Option) *Manager {
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	cfg.ApplyDefaults()
	m := &Manager{
		config: cfg,
		logger: log,
		writer: os.Stdout,
		global: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 创建 Provider；未启用时什么都不做，Provider 为 noop
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.DebugCtx(ctx, "telemetry disabled, skipping initialization")
		return nil
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	res, err := newResource(ctx, m.config)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, m.config.Exporter, m.writer)
	if err != nil {
		return fmt.Errorf("create span exporter failed: %w", err)
	}
	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(m.config.Sampler)),
	}
	if m.config.Batch.Enabled {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter,
			sdktrace.WithMaxQueueSize(m.config.Batch.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(m.config.Batch.MaxExportBatchSize),
			sdktrace.WithBatchTimeout(m.config.Batch.ScheduleDelay),
			sdktrace.WithExportTimeout(m.config.Batch.ExportTimeout),
		))
	} else {
		traceOpts = append(traceOpts, sdktrace.WithSyncer(spanExporter))
	}
	m.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)

	if m.config.Metrics.Enabled {
		metricExporter, err := newMetricExporter(ctx, m.config.Exporter, m.writer)
		if err != nil {
			_ = m.tracerProvider.Shutdown(ctx)
			m.tracerProvider = nil
			return fmt.Errorf("create metrics exporter failed: %w", err)
		}
		metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if metricExporter != nil {
			metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(m.config.Metrics.ExportInterval),
				sdkmetric.WithTimeout(m.config.Metrics.ExportTimeout),
			)))
		}
		m.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	}

	if m.global {
		otel.SetTracerProvider(m.tracerProvider)
		if m.meterProvider != nil {
			otel.SetMeterProvider(m.meterProvider)
		}
	}
	m.started = true

	m.logger.InfoCtx(ctx, "✅ telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", m.meterProvider != nil))
	return nil
}

// ForceFlush 立即导出缓冲中的 span 和指标
func (m *Manager) ForceFlush(ctx context.Context) error {
	m.mu.RLock()
	tp, mp := m.tracerProvider, m.meterProvider
	m.mu.RUnlock()

	var errs []error
	if tp != nil {
		errs = append(errs, tp.ForceFlush(ctx))
	}
	if mp != nil {
		errs = append(errs, mp.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown 实现 samber/do 的 ShutdownerWithContextAndError，可重复调用
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tp, mp := m.tracerProvider, m.meterProvider
	m.tracerProvider, m.meterProvider = nil, nil
	m.started = false
	m.mu.Unlock()

	var errs []error
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider failed: %w", err))
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// TracerProvider 未启动时返回 noop
func (m *Manager) TracerProvider() trace.TracerProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return m.tracerProvider
}

// MeterProvider 未启动或未开启 metrics 时返回 noop
func (m *Manager) MeterProvider() metric.MeterProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return m.meterProvider
}

func (m *Manager) Tracer(name string) trace.Tracer {
	return m.TracerProvider().Tracer(name)
}

func (m *Manager) Meter(name string) metric.Meter {
	return m.MeterProvider().Meter(name)
}

// MetricsEnabled 组件级开关，component 取 "redis" 或 "limiter"
func (m *Manager) MetricsEnabled(component string) bool {
	m.mu.RLock()
	running := m.meterProvider != nil
	m.mu.RUnlock()
	if !running {
		return false
	}
	switch component {
	case "redis":
		return m.config.Metrics.Redis
	case "limiter":
		return m.config.Metrics.Limiter
	default:
		return false
	}
}

func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

func (m *Manager) GetConfig() Config {
	return m.config
}

func newSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case SamplerRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig OpenTelemetry 指标配置
type MetricsConfig struct {
	Enabled      bool `mapstructure:"enabled" json:"enabled"`
	RecordTokens bool `mapstructure:"record_tokens" json:"record_tokens"` // 上报可用令牌 gauge
}

// OTelMetrics 限流器的 OpenTelemetry 指标
type OTelMetrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	// 请求级
	requestsTotal metric.Int64Counter
	allowedTotal  metric.Int64Counter
	rejectedTotal metric.Int64Counter

	// 令牌级（来自 bucket 的 StatisticCollector 回调）
	consumedTokens metric.Int64Counter
	rejectedTokens metric.Int64Counter
	returnedTokens metric.Int64Counter
	interrupts     metric.Int64Counter
	parkedSeconds  metric.Float64Counter

	availableTokens metric.Int64ObservableGauge
	tokenCallbacks  map[string]func() int64
	tokenMu         sync.RWMutex
}

// NewOTelMetrics 创建指标，RegisterMetrics 之前所有记录都是空操作
func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{
		config:         cfg,
		tokenCallbacks: make(map[string]func() int64),
	}
}

func (m *OTelMetrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// RegisterMetrics 在 meter 上创建所有 instrument，重复调用无副作用
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.requestsTotal, err = meter.Int64Counter("limiter_requests_total",
		metric.WithDescription("Total number of rate limit requests"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}
	if m.allowedTotal, err = meter.Int64Counter("limiter_allowed_total",
		metric.WithDescription("Total number of allowed requests"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}
	if m.rejectedTotal, err = meter.Int64Counter("limiter_rejected_total",
		metric.WithDescription("Total number of rejected requests"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}
	if m.consumedTokens, err = meter.Int64Counter("bucket_consumed_tokens_total",
		metric.WithDescription("Tokens consumed from buckets"),
		metric.WithUnit("{token}")); err != nil {
		return err
	}
	if m.rejectedTokens, err = meter.Int64Counter("bucket_rejected_tokens_total",
		metric.WithDescription("Tokens requested but not granted"),
		metric.WithUnit("{token}")); err != nil {
		return err
	}
	if m.returnedTokens, err = meter.Int64Counter("bucket_returned_tokens_total",
		metric.WithDescription("Tokens returned to buckets"),
		metric.WithUnit("{token}")); err != nil {
		return err
	}
	if m.interrupts, err = meter.Int64Counter("bucket_interrupts_total",
		metric.WithDescription("Waits aborted by cancellation"),
		metric.WithUnit("{wait}")); err != nil {
		return err
	}
	if m.parkedSeconds, err = meter.Float64Counter("bucket_parked_seconds_total",
		metric.WithDescription("Time spent parked waiting for refill"),
		metric.WithUnit("s")); err != nil {
		return err
	}

	if m.config.RecordTokens {
		if m.availableTokens, err = meter.Int64ObservableGauge("limiter_available_tokens",
			metric.WithDescription("Current available tokens"),
			metric.WithUnit("{token}"),
			metric.WithInt64Callback(m.collectTokens)); err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

func (m *OTelMetrics) collectTokens(_ context.Context, observer metric.Int64Observer) error {
	m.tokenMu.RLock()
	defer m.tokenMu.RUnlock()

	for resource, callback := range m.tokenCallbacks {
		observer.Observe(callback(), metric.WithAttributes(attribute.String("resource", resource)))
	}
	return nil
}

// RegisterTokenCallback gauge 采集时调用
func (m *OTelMetrics) RegisterTokenCallback(resource string, callback func() int64) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	m.tokenCallbacks[resource] = callback
}

func (m *OTelMetrics) UnregisterTokenCallback(resource string) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	delete(m.tokenCallbacks, resource)
}

func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

func (m *OTelMetrics) RecordAllowed(ctx context.Context, resource string) {
	if !m.IsRegistered() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("resource", resource))
	m.requestsTotal.Add(ctx, 1, attrs)
	m.allowedTotal.Add(ctx, 1, attrs)
}

func (m *OTelMetrics) RecordRejected(ctx context.Context, resource, reason string) {
	if !m.IsRegistered() {
		return
	}
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
	m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("reason", reason),
	))
}

// Statistic 返回绑定到 resource 的 bucket.StatisticCollector
func (m *OTelMetrics) Statistic(resource string) bucket.StatisticCollector {
	if !m.IsRegistered() {
		return bucket.NoopStatistic
	}
	return &otelStatistic{
		metrics: m,
		attrs:   metric.WithAttributes(attribute.String("resource", resource)),
	}
}

type otelStatistic struct {
	metrics *OTelMetrics
	attrs   metric.MeasurementOption
}

func (s *otelStatistic) RegisterConsumed(tokens int64) {
	s.metrics.consumedTokens.Add(context.Background(), tokens, s.attrs)
}

func (s *otelStatistic) RegisterRejected(tokens int64) {
	s.metrics.rejectedTokens.Add(context.Background(), tokens, s.attrs)
}

func (s *otelStatistic) RegisterReturned(tokens int64) {
	s.metrics.returnedTokens.Add(context.Background(), tokens, s.attrs)
}

func (s *otelStatistic) RegisterInterrupt() {
	s.metrics.interrupts.Add(context.Background(), 1, s.attrs)
}

func (s *otelStatistic) RegisterParkedNanos(nanos int64) {
	s.metrics.parkedSeconds.Add(context.Background(), time.Duration(nanos).Seconds(), s.attrs)
}

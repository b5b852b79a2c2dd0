package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// commandMetrics redis 命令计数与耗时
type commandMetrics struct {
	commands metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newCommandMetrics(meter metric.Meter) (*commandMetrics, error) {
	commands, err := meter.Int64Counter("redis_commands_total",
		metric.WithDescription("Total number of Redis commands executed"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("redis_command_errors_total",
		metric.WithDescription("Total number of failed Redis commands"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("redis_command_duration_seconds",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &commandMetrics{commands: commands, errors: errs, duration: duration}, nil
}

func (m *commandMetrics) record(ctx context.Context, instance, command string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("instance", instance),
		attribute.String("command", command),
	)
	m.commands.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	// redis.Nil 是未命中，不算失败
	if err != nil && !errors.Is(err, redis.Nil) {
		m.errors.Add(ctx, 1, attrs)
	}
}

// metricsHook 实现 redis.Hook
type metricsHook struct {
	metrics  *commandMetrics
	instance string
}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.record(ctx, h.instance, cmd.Name(), time.Since(start), err)
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if len(cmds) == 0 {
			return err
		}
		each := time.Since(start) / time.Duration(len(cmds))
		for _, cmd := range cmds {
			h.metrics.record(ctx, h.instance, cmd.Name(), each, cmd.Err())
		}
		return err
	}
}

// Instrument 为所有实例挂载命令指标，重复调用无效果
func (m *Manager) Instrument(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics != nil {
		return nil
	}

	metrics, err := newCommandMetrics(meter)
	if err != nil {
		return err
	}
	m.metrics = metrics

	for name, client := range m.instances {
		client.AddHook(metricsHook{metrics: metrics, instance: name})
	}
	for name, cluster := range m.clusters {
		cluster.AddHook(metricsHook{metrics: metrics, instance: name})
	}
	return nil
}

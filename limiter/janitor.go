package limiter

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

func (m *Manager) startJanitor() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(m.config.JanitorInterval),
		gocron.NewTask(func() { m.EvictIdle(context.Background()) }),
		gocron.WithName("limiter-janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	s.Start()
	m.janitor = s
	return nil
}

// EvictIdle 回收闲置超过 IdleTTL 的本地 bucket，返回回收数量。
// 闲置时间按 bucket 使用的 TimeMeter 计算。
// 共享存储中的状态不受影响；内存存储只回收已经补满的 bucket，
// 否则下次使用会凭空得到满容量。
func (m *Manager) EvictIdle(ctx context.Context) int {
	if !m.config.Enabled || m.config.IdleTTL <= 0 {
		return 0
	}
	now := m.meter.CurrentTimeNanos()
	deadline := now - int64(m.config.IdleTTL)
	_, local := m.backend.(memoryBackend)

	m.mu.Lock()
	var evicted []string
	for resource, limiter := range m.limiters {
		if limiter.lastUsed.Load() >= deadline {
			continue
		}
		if local && !m.refilled(ctx, limiter, now) {
			continue
		}
		delete(m.limiters, resource)
		evicted = append(evicted, resource)
	}
	m.mu.Unlock()

	for _, resource := range evicted {
		m.otel.UnregisterTokenCallback(resource)
		m.publish(&EvictedEvent{BaseEvent: NewBaseEvent(EventEvicted, resource, ctx)})
	}
	if len(evicted) > 0 {
		m.logger.DebugCtx(ctx, "🧹 idle buckets evicted", zap.Strings("resources", evicted))
	}
	return len(evicted)
}

// refilled 本地 bucket 的所有带宽都已补到上限
func (m *Manager) refilled(ctx context.Context, limiter *rateLimiter, now int64) bool {
	snapshot, err := limiter.bucket.Snapshot(ctx)
	if err != nil {
		return false
	}
	cfg := limiter.bucket.Configuration()
	state := snapshot.Clone()
	state.Refill(cfg, now)
	return state.IsFull(cfg)
}

package bucket

import (
	"context"

	"go.uber.org/zap"
)

const unlimitedWait int64 = -1

// waitBudget 阻塞和异步路径共用的“等待还是放弃”判断
type waitBudget struct {
	maxWaitNanos int64 // 不限时为 unlimitedWait
	startNanos   int64
}

func (b *Bucket) newBudget(maxWaitNanos int64) waitBudget {
	return waitBudget{maxWaitNanos: maxWaitNanos, startNanos: b.cfg.meter.CurrentTimeNanos()}
}

// allows 在 nowNanos 时再等 delay 纳秒是否仍在预算内
func (w waitBudget) allows(nowNanos, delay int64) bool {
	if delay == MaxDelay {
		return false
	}
	if w.maxWaitNanos == unlimitedWait {
		return true
	}
	remaining := w.maxWaitNanos - (nowNanos - w.startNanos)
	return remaining > 0 && delay <= remaining
}

// consumeOrAwait 两次尝试之间在 TimeMeter 上阻塞，每次醒来都重新尝试
func (b *Bucket) consumeOrAwait(ctx context.Context, tokens int64, budget waitBudget) (bool, error) {
	meter := b.cfg.meter
	for {
		delay, err := b.engine.ConsumeOrDelay(ctx, tokens)
		if err != nil {
			return false, err
		}
		if delay == 0 {
			b.stats.RegisterConsumed(tokens)
			return true, nil
		}

		if !budget.allows(meter.CurrentTimeNanos(), delay) {
			b.stats.RegisterRejected(tokens)
			b.logger.DebugCtx(ctx, "tokens not available within wait budget",
				zap.String("bucket", b.name),
				zap.Int64("tokens", tokens),
				zap.Int64("delay_nanos", delay))
			return false, nil
		}

		if err := meter.ParkNanos(ctx, delay); err != nil {
			return false, b.interrupted(ctx, tokens, err)
		}
		b.stats.RegisterParkedNanos(delay)
	}
}

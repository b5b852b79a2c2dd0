package bucket

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.uber.org/zap"
)

// Bucket 令牌桶，状态变更交给 Engine。
//
// 取令牌系列方法的返回：
//   - (true, nil)  成功
//   - (false, nil) 拒绝，当前或等待预算内令牌不足
//   - (false, err) 等待被取消时 err 包装 ErrInterrupted，或者是存储错误
type Bucket struct {
	name   string
	cfg    *Configuration
	engine Engine
	stats  StatisticCollector
	logger *logger.CtxZapLogger
}

// Option Bucket 可选项
type Option func(*Bucket)

// WithName 日志字段中的名称
func WithName(name string) Option {
	return func(b *Bucket) { b.name = name }
}

// WithLogger 覆盖 bucket 模块 logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(b *Bucket) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStatistic 注册统计收集器
func WithStatistic(stats StatisticCollector) Option {
	return func(b *Bucket) {
		if stats != nil {
			b.stats = stats
		}
	}
}

// New 基于任意 Engine 创建 bucket
func New(cfg *Configuration, engine Engine, opts ...Option) *Bucket {
	b := &Bucket{
		cfg:    cfg,
		engine: engine,
		stats:  NoopStatistic,
		logger: logger.GetLogger("bucket"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewLockFree 进程内 lock-free bucket
func NewLockFree(cfg *Configuration, opts ...Option) *Bucket {
	return New(cfg, NewLockFreeEngine(cfg), opts...)
}

func (b *Bucket) Name() string                  { return b.name }
func (b *Bucket) Configuration() *Configuration { return b.cfg }
func (b *Bucket) Engine() Engine                { return b.engine }

// TryConsume 令牌足够时立即扣除，不等待
func (b *Bucket) TryConsume(ctx context.Context, tokens int64) (bool, error) {
	if err := checkTokens(tokens); err != nil {
		return false, err
	}

	ok, err := b.engine.TryConsume(ctx, tokens)
	if err != nil {
		return false, err
	}
	b.record(tokens, ok)
	return ok, nil
}

// ConsumeAsMuchAsPossible 最多取 limit 个，返回实际取到的数量
func (b *Bucket) ConsumeAsMuchAsPossible(ctx context.Context, limit int64) (int64, error) {
	if err := checkTokens(limit); err != nil {
		return 0, err
	}

	consumed, err := b.engine.ConsumeAsMuchAsPossible(ctx, limit)
	if err != nil {
		return 0, err
	}
	if consumed > 0 {
		b.stats.RegisterConsumed(consumed)
	}
	if consumed < limit {
		b.stats.RegisterRejected(limit - consumed)
	}
	return consumed, nil
}

// TryConsumeAndWait 取令牌，最多等待 maxWait
func (b *Bucket) TryConsumeAndWait(ctx context.Context, tokens int64, maxWait time.Duration) (bool, error) {
	if err := checkTokens(tokens); err != nil {
		return false, err
	}
	if maxWait <= 0 {
		return false, ErrNonPositiveWait.WithMsgf("waiting value should be positive, got %v", maxWait)
	}
	return b.consumeOrAwait(ctx, tokens, b.newBudget(int64(maxWait)))
}

// Consume 取令牌，需要多久等多久。
// 只有永远无法满足时才拒绝。
func (b *Bucket) Consume(ctx context.Context, tokens int64) (bool, error) {
	if err := checkTokens(tokens); err != nil {
		return false, err
	}
	return b.consumeOrAwait(ctx, tokens, b.newBudget(unlimitedWait))
}

// AvailableTokens 当前可用令牌（估计值）
func (b *Bucket) AvailableTokens(ctx context.Context) (int64, error) {
	return b.engine.AvailableTokens(ctx)
}

// ReturnTokens 归还已取的令牌，不超过上限
func (b *Bucket) ReturnTokens(ctx context.Context, tokens int64) error {
	if err := checkTokens(tokens); err != nil {
		return err
	}
	if err := b.engine.AddTokens(ctx, tokens); err != nil {
		return err
	}
	b.stats.RegisterReturned(tokens)
	return nil
}

// Snapshot 当前状态的拷贝
func (b *Bucket) Snapshot(ctx context.Context) (*State, error) {
	return b.engine.Snapshot(ctx)
}

// ApplySnapshot 整体替换状态
func (b *Bucket) ApplySnapshot(ctx context.Context, state *State) error {
	if state == nil {
		return ErrIncompatibleSnapshot.WithMsg("snapshot is nil")
	}
	return b.engine.ApplySnapshot(ctx, state)
}

func (b *Bucket) record(tokens int64, granted bool) {
	if granted {
		b.stats.RegisterConsumed(tokens)
		return
	}
	b.stats.RegisterRejected(tokens)
}

func (b *Bucket) interrupted(ctx context.Context, tokens int64, cause error) error {
	b.stats.RegisterInterrupt()
	b.logger.DebugCtx(ctx, "wait for tokens interrupted",
		zap.String("bucket", b.name),
		zap.Int64("tokens", tokens),
		zap.Error(cause))
	return ErrInterrupted.Wrap(cause)
}

func checkTokens(tokens int64) error {
	if tokens <= 0 {
		return ErrNonPositiveTokens.WithMsgf("unable to consume %d tokens, number of tokens should be positive", tokens)
	}
	return nil
}

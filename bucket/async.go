package bucket

import (
	"context"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Scheduler 延迟 delay 后执行 task；返回的函数取消尚未执行的任务，
// 返回值表示任务是否仍在等待。
type Scheduler interface {
	Schedule(delay time.Duration, task func()) (cancel func() bool)
}

// PoolScheduler 定时器到期后把任务投递到 ants 协程池
type PoolScheduler struct {
	pool   *ants.Pool
	logger *logger.CtxZapLogger
}

// NewPoolScheduler 创建 size 个 worker 的调度器
func NewPoolScheduler(size int) (*PoolScheduler, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &PoolScheduler{pool: pool, logger: logger.GetLogger("bucket")}, nil
}

func (s *PoolScheduler) Schedule(delay time.Duration, task func()) func() bool {
	timer := time.AfterFunc(delay, func() {
		if err := s.pool.Submit(task); err != nil {
			// 池已满或已释放，退化为独立 goroutine
			s.logger.Warn("scheduler pool submit failed, running task inline", zap.Error(err))
			go task()
		}
	})
	return timer.Stop
}

// Release 释放协程池，不再接受任务
func (s *PoolScheduler) Release() {
	s.pool.Release()
}

// Future 异步取令牌的结果
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	ok        bool
	err       error
	cancel    func() bool
	round     uint64
	stopCtx   func() bool

	onInterrupt func()
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// CompletedFuture 已经完成的 Future
func CompletedFuture(ok bool, err error) *Future {
	f := newFuture()
	f.complete(ok, err)
	return f
}

// Done 结果就绪后关闭
func (f *Future) Done() <-chan struct{} { return f.done }

// Get 等待结果或 ctx 结束
func (f *Future) Get(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.ok, f.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Cancel 取消等待，Future 以 ErrInterrupted 完成。
// 已经完成时返回 false。
func (f *Future) Cancel() bool {
	return f.complete(false, ErrInterrupted.WithMsg("async consume cancelled"), f.onInterrupt)
}

// complete 只发布一次结果；before 在唤醒等待方之前执行
func (f *Future) complete(ok bool, err error, before ...func()) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.ok, f.err = ok, err
	cancel, stopCtx := f.cancel, f.stopCtx
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopCtx != nil {
		stopCtx()
	}
	for _, fn := range before {
		if fn != nil {
			fn()
		}
	}
	close(f.done)
	return true
}

// nextRound 开始新一轮等待，返回轮次编号
func (f *Future) nextRound() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.round++
	return f.round
}

// park 登记第 round 轮的定时器；future 已完成时返回 false。
// 定时器可能在 park 之前就触发并开始下一轮，过期轮次的 cancel 不再登记。
func (f *Future) park(round uint64, cancel func() bool) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		cancel()
		return false
	}
	if round == f.round {
		f.cancel = cancel
	}
	f.mu.Unlock()
	return true
}

func (f *Future) isCompleted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// TryConsumeAsync 异步版 TryConsumeAndWait，通过 scheduler 等待而不是阻塞调用方
func (b *Bucket) TryConsumeAsync(ctx context.Context, tokens int64, maxWait time.Duration, scheduler Scheduler) *Future {
	f := newFuture()
	if err := checkTokens(tokens); err != nil {
		f.complete(false, err)
		return f
	}
	if maxWait <= 0 {
		f.complete(false, ErrNonPositiveWait.WithMsgf("waiting value should be positive, got %v", maxWait))
		return f
	}
	b.startAsync(ctx, f, tokens, b.newBudget(int64(maxWait)), scheduler)
	return f
}

// ConsumeAsync 异步版 Consume，等待时间不设上限
func (b *Bucket) ConsumeAsync(ctx context.Context, tokens int64, scheduler Scheduler) *Future {
	f := newFuture()
	if err := checkTokens(tokens); err != nil {
		f.complete(false, err)
		return f
	}
	b.startAsync(ctx, f, tokens, b.newBudget(unlimitedWait), scheduler)
	return f
}

func (b *Bucket) startAsync(ctx context.Context, f *Future, tokens int64, budget waitBudget, scheduler Scheduler) {
	f.mu.Lock()
	f.onInterrupt = b.stats.RegisterInterrupt
	f.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		f.complete(false, ErrInterrupted.Wrap(context.Cause(ctx)), b.stats.RegisterInterrupt)
	})
	f.mu.Lock()
	f.stopCtx = stop
	f.mu.Unlock()

	b.attemptAsync(ctx, f, tokens, budget, scheduler)
}

// attemptAsync 与 consumeOrAwait 相同的一轮判断，需要等待时挂到定时器上继续
func (b *Bucket) attemptAsync(ctx context.Context, f *Future, tokens int64, budget waitBudget, scheduler Scheduler) {
	if f.isCompleted() {
		return
	}

	delay, err := b.engine.ConsumeOrDelay(ctx, tokens)
	if err != nil {
		f.complete(false, err)
		return
	}
	if delay == 0 {
		if f.complete(true, nil, func() { b.stats.RegisterConsumed(tokens) }) {
			return
		}
		// 提交时已被取消，归还令牌
		if err := b.engine.AddTokens(context.WithoutCancel(ctx), tokens); err != nil {
			b.logger.WarnCtx(ctx, "failed to return tokens of a cancelled async consume",
				zap.String("bucket", b.name), zap.Error(err))
		}
		return
	}

	if !budget.allows(b.cfg.meter.CurrentTimeNanos(), delay) {
		f.complete(false, nil, func() { b.stats.RegisterRejected(tokens) })
		return
	}

	round := f.nextRound()
	cancel := scheduler.Schedule(time.Duration(delay), func() {
		b.stats.RegisterParkedNanos(delay)
		b.attemptAsync(ctx, f, tokens, budget, scheduler)
	})
	f.park(round, cancel)
}

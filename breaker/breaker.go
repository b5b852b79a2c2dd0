// Package breaker 连续失败计数的熔断器
//
//	cb := breaker.New("redis", cfg)
//	err := cb.Do(ctx, func(ctx context.Context) error { return store.Execute(ctx, key, p) })
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Counts 当前周期的计数
type Counts struct {
	Requests            int64 `json:"requests"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	Rejected            int64 `json:"rejected"`
	TotalFailures       int64 `json:"total_failures"`
	HalfOpenInFlight    int   `json:"half_open_in_flight"`
	HalfOpenSuccesses   int   `json:"half_open_successes"`
	Transitions         int64 `json:"state_transitions"`
}

// Option 可选项
type Option func(*Breaker)

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func WithLogger(log *logger.CtxZapLogger) Option {
	return func(b *Breaker) { b.logger = log }
}

// WithIsFailure 哪些错误计为失败，默认 ctx 取消不计
func WithIsFailure(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithStateListener 状态切换回调，在锁外调用
func WithStateListener(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker 单个资源的熔断器，并发安全
type Breaker struct {
	name      string
	config    Config
	now       func() time.Time
	logger    *logger.CtxZapLogger
	isFailure func(error) bool
	onChange  func(name string, from, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time
	counts     Counts
}

func New(name string, cfg Config, opts ...Option) *Breaker {
	cfg.ApplyDefaults()
	b := &Breaker{
		name:      name,
		config:    cfg,
		now:       time.Now,
		isFailure: defaultIsFailure,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.GetLogger("breaker")
	}
	return b
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Do 熔断时直接返回 ErrOpen，不调用 fn
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.before()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.after(gen, b.isFailure(err))
	return err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	var changed bool
	var from State

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			b.counts.Rejected++
			b.mu.Unlock()
			return 0, ErrOpen.WithData("name", b.name)
		}
		from, changed = b.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.counts.HalfOpenInFlight+b.counts.HalfOpenSuccesses >= b.config.HalfOpenRequests {
			b.counts.Rejected++
			b.mu.Unlock()
			b.notify(changed, from, StateHalfOpen)
			return 0, ErrTooManyRequests.WithData("name", b.name)
		}
		b.counts.HalfOpenInFlight++
	}
	b.counts.Requests++
	state, gen := b.state, b.generation
	b.mu.Unlock()

	b.notify(changed, from, state)
	return gen, nil
}

// after 状态已切换过的请求结果直接丢弃
func (b *Breaker) after(gen uint64, failed bool) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	var changed bool
	var from State

	switch b.state {
	case StateClosed:
		if failed {
			b.counts.TotalFailures++
			b.counts.ConsecutiveFailures++
			if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
				from, changed = b.setState(StateOpen)
			}
		} else {
			b.counts.ConsecutiveFailures = 0
		}
	case StateHalfOpen:
		b.counts.HalfOpenInFlight--
		if failed {
			b.counts.TotalFailures++
			from, changed = b.setState(StateOpen)
		} else {
			b.counts.HalfOpenSuccesses++
			if b.counts.HalfOpenSuccesses >= b.config.HalfOpenRequests {
				from, changed = b.setState(StateClosed)
			}
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(changed, from, to)
}

// setState 调用方持有锁
func (b *Breaker) setState(to State) (State, bool) {
	from := b.state
	if from == to {
		return from, false
	}
	b.state = to
	b.counts.Transitions++
	b.generation++
	b.counts.ConsecutiveFailures = 0
	b.counts.HalfOpenInFlight = 0
	b.counts.HalfOpenSuccesses = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	return from, true
}

func (b *Breaker) notify(changed bool, from, to State) {
	if !changed {
		return
	}
	if to == StateOpen {
		b.logger.Warn("⚠️  circuit breaker opened",
			zap.String("name", b.name),
			zap.Stringer("from", from),
			zap.Duration("open_timeout", b.config.OpenTimeout))
	} else {
		b.logger.Info("circuit breaker state changed",
			zap.String("name", b.name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// State 熔断超时到期但还没有新请求时仍返回 open
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

func (b *Breaker) Name() string {
	return b.name
}

// Reset 手动恢复到 closed
func (b *Breaker) Reset() {
	b.mu.Lock()
	from, changed := b.setState(StateClosed)
	b.mu.Unlock()
	b.notify(changed, from, StateClosed)
}

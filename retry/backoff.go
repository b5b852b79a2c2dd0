package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy 第 attempt 次失败后的等待时间（attempt 从 1 开始）
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption 退避选项
type BackoffOption func(*backoffConfig)

type backoffConfig struct {
	multiplier float64
	maxDelay   time.Duration
	jitter     float64 // 0.2 表示 ±20%
}

func newBackoffConfig(opts []BackoffOption) backoffConfig {
	cfg := backoffConfig{multiplier: 2.0, maxDelay: 30 * time.Second, jitter: 0.2}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMultiplier 指数倍数，默认 2
func WithMultiplier(m float64) BackoffOption {
	return func(c *backoffConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithMaxDelay 延迟上限，默认 30s
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithJitter 抖动比例 [0, 1]
func WithJitter(ratio float64) BackoffOption {
	return func(c *backoffConfig) {
		if ratio >= 0 && ratio <= 1 {
			c.jitter = ratio
		}
	}
}

type exponentialBackoff struct {
	base time.Duration
	cfg  backoffConfig
}

// ExponentialBackoff delay = base * multiplier^(attempt-1)，不超过 maxDelay
//
//	base=1ms: 1ms, 2ms, 4ms, 8ms ...
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	return &exponentialBackoff{base: base, cfg: newBackoffConfig(opts)}
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := math.Min(float64(b.base)*math.Pow(b.cfg.multiplier, float64(attempt-1)), float64(b.cfg.maxDelay))
	return time.Duration(applyJitter(delay, b.cfg.jitter))
}

type constantBackoff struct {
	delay time.Duration
	cfg   backoffConfig
}

// ConstantBackoff 固定延迟（可带抖动）
func ConstantBackoff(delay time.Duration, opts ...BackoffOption) BackoffStrategy {
	return &constantBackoff{delay: delay, cfg: newBackoffConfig(opts)}
}

func (b *constantBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(applyJitter(float64(b.delay), b.cfg.jitter))
}

type noBackoff struct{}

// NoBackoff 立即重试
func NoBackoff() BackoffStrategy { return noBackoff{} }

func (noBackoff) Next(int) time.Duration { return 0 }

// applyJitter 在 [delay*(1-jitter), delay*(1+jitter)] 内随机
func applyJitter(delay, jitter float64) float64 {
	if jitter <= 0 {
		return delay
	}
	delta := delay * jitter
	return math.Max(0, delay+(rand.Float64()*2-1)*delta)
}

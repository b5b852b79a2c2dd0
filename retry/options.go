package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   RetryCondition
	onRetry     func(attempt int, err error)
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(100 * time.Millisecond),
		condition:   AlwaysRetry(),
	}
}

// Option 重试选项
type Option func(*config)

// MaxAttempts 最大尝试次数（含第一次），默认 3
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff 默认 100ms 起的指数退避
func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition 默认任何错误都重试
func Condition(cond RetryCondition) Option {
	return func(c *config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry 每次进入退避前回调
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *config) {
		c.onRetry = f
	}
}

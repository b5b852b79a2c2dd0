// Package retry 带退避的重试
package retry

import (
	"context"
	"time"
)

// Do 执行 operation，失败按条件退避重试；失败返回 *MultiError
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	_, err := DoWithData(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, opts...)
	return err
}

// DoWithData 带返回值的 Do
func DoWithData[T any](ctx context.Context, operation func() (T, error), opts ...Option) (T, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var zero T
	var errs []error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		errs = append(errs, err)

		if attempt >= cfg.maxAttempts || !cfg.condition.ShouldRetry(err, attempt) {
			return zero, &MultiError{Errors: errs, Attempts: attempt}
		}

		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err)
		}

		wait := cfg.backoff.Next(attempt)
		// 剩余时间不足以等待时直接放弃
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return zero, &MultiError{Errors: append(errs, context.DeadlineExceeded), Attempts: attempt}
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}
}

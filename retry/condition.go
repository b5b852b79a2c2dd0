package retry

import "errors"

// RetryCondition 第 attempt 次失败后是否继续
type RetryCondition interface {
	ShouldRetry(err error, attempt int) bool
}

// ConditionFunc 函数适配
type ConditionFunc func(err error, attempt int) bool

func (f ConditionFunc) ShouldRetry(err error, attempt int) bool { return f(err, attempt) }

// AlwaysRetry 任何错误都重试
func AlwaysRetry() RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return err != nil })
}

func NeverRetry() RetryCondition {
	return ConditionFunc(func(error, int) bool { return false })
}

// RetryOnError 仅 errors.Is(err, target) 时重试
func RetryOnError(target error) RetryCondition {
	return RetryOnErrors(target)
}

// RetryOnErrors 匹配任一 target 时重试
func RetryOnErrors(targets ...error) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool {
		if err == nil {
			return false
		}
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// RetryOnCondition 自定义判断
func RetryOnCondition(fn func(error) bool) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return err != nil && fn(err) })
}

// And 全部满足才重试
func And(conditions ...RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool {
		for _, c := range conditions {
			if !c.ShouldRetry(err, attempt) {
				return false
			}
		}
		return true
	})
}

// Or 任一满足即重试
func Or(conditions ...RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool {
		for _, c := range conditions {
			if c.ShouldRetry(err, attempt) {
				return true
			}
		}
		return false
	})
}

func Not(condition RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool { return !condition.ShouldRetry(err, attempt) })
}

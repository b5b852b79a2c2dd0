// Package health 汇总限流依赖（redis、数据库等）的健康状态
package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy Status = "healthy"
	// StatusDegraded 非关键依赖不可用
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Checker 单个检查项
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type funcChecker struct {
	name     string
	check    func(ctx context.Context) error
	critical bool
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.check(ctx) }
func (c funcChecker) Critical() bool                  { return c.critical }

// NewChecker 关键检查项，失败时整体为 unhealthy
func NewChecker(name string, check func(ctx context.Context) error) Checker {
	return funcChecker{name: name, check: check, critical: true}
}

// NewOptionalChecker 非关键检查项，失败时整体为 degraded
func NewOptionalChecker(name string, check func(ctx context.Context) error) Checker {
	return funcChecker{name: name, check: check}
}

// criticalChecker 未实现时视为关键
type criticalChecker interface {
	Critical() bool
}

func isCritical(c Checker) bool {
	if cc, ok := c.(criticalChecker); ok {
		return cc.Critical()
	}
	return true
}

// CheckResult 单个检查项的结果
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Response 汇总结果
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

func (r *Response) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// Package limiter 按资源名管理令牌桶
//
// 设计：
// - 每个资源一个 bucket，配置来自 Config.Resources，未配置的资源使用 Default
// - 存储可选：进程内（lock-free）或 redis / database / etcd（多实例共享状态）
// - 事件驱动，应用层可订阅放行、拒绝、等待、状态恢复等事件
// - 未启用时所有调用直接放行
package limiter

import (
	"context"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// Limiter 核心接口
type Limiter interface {
	// Allow 取 1 个令牌，不等待
	Allow(ctx context.Context, resource string) (bool, error)

	// AllowN 取 n 个令牌，不等待
	AllowN(ctx context.Context, resource string, n int64) (bool, error)

	// Wait 在资源的 WaitTimeout 内等待 1 个令牌
	Wait(ctx context.Context, resource string) error

	// WaitN 在资源的 WaitTimeout 内等待 n 个令牌，超出预算返回 ErrWaitTimeout
	WaitN(ctx context.Context, resource string, n int64) error

	// AcquireAsync WaitN 的异步版本
	AcquireAsync(ctx context.Context, resource string, n int64) *bucket.Future

	// Available 当前可用令牌数
	Available(ctx context.Context, resource string) (int64, error)

	GetMetrics(resource string) *MetricsSnapshot

	GetEventBus() EventBus

	// Reset 把资源的 bucket 恢复为初始状态并清空指标
	Reset(ctx context.Context, resource string) error

	Close() error

	IsEnabled() bool
}

package limiter

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode limiter 模块码
const ModuleCode = 32

var (
	// ErrWaitTimeout 等待预算内拿不到令牌
	ErrWaitTimeout = errcode.Register(errcode.New(ModuleCode, 1, "limiter", "error.limiter.wait_timeout",
		"wait timeout", http.StatusTooManyRequests))

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 2, "limiter", "error.limiter.invalid_config",
		"invalid limiter config", http.StatusInternalServerError))

	// ErrStoreNotSupported 存储类型不支持或依赖缺失
	ErrStoreNotSupported = errcode.Register(errcode.New(ModuleCode, 3, "limiter", "error.limiter.store_not_supported",
		"store not supported", http.StatusInternalServerError))

	// ErrResourceNotFound 资源未配置且没有可用的默认配置
	ErrResourceNotFound = errcode.Register(errcode.New(ModuleCode, 4, "limiter", "error.limiter.resource_not_found",
		"resource not found", http.StatusNotFound))

	// ErrClosed manager 已关闭
	ErrClosed = errcode.Register(errcode.New(ModuleCode, 5, "limiter", "error.limiter.closed",
		"limiter closed", http.StatusServiceUnavailable))

	// ErrRateLimited 令牌不足被拒绝
	ErrRateLimited = errcode.Register(errcode.New(ModuleCode, 6, "limiter", "error.limiter.rate_limited",
		"rate limit exceeded", http.StatusTooManyRequests))
)

package breaker

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode breaker 模块码
const ModuleCode = 37

var (
	// ErrOpen 熔断中，调用未执行
	ErrOpen = errcode.Register(errcode.New(ModuleCode, 1, "breaker", "error.breaker.open",
		"circuit breaker is open", http.StatusServiceUnavailable))

	// ErrTooManyRequests 半开状态的试探名额已用完
	ErrTooManyRequests = errcode.Register(errcode.New(ModuleCode, 2, "breaker", "error.breaker.too_many_requests",
		"circuit breaker is half-open", http.StatusServiceUnavailable))

	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 3, "breaker", "error.breaker.invalid_config",
		"invalid circuit breaker config", http.StatusInternalServerError))
)

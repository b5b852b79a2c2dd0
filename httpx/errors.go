package httpx

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode httpx 模块码
const ModuleCode = 34

var (
	// ErrBadRequest 请求体无法解析
	ErrBadRequest = errcode.Register(errcode.New(ModuleCode, 1, "httpx", "error.httpx.bad_request",
		"bad request", http.StatusBadRequest))

	// ErrValidation 参数校验失败，字段详情在 data.fields
	ErrValidation = errcode.Register(errcode.New(ModuleCode, 2, "httpx", "error.httpx.validation",
		"validation failed", http.StatusBadRequest))

	// ErrInternal 未知错误
	ErrInternal = errcode.Register(errcode.New(ModuleCode, 3, "httpx", "error.httpx.internal",
		"internal error", http.StatusInternalServerError))
)

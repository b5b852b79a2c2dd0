// Package errcode 分层错误码
// 格式 MMBBBB：MM 为模块码（10-99），BBBB 为业务码（0001-9999）
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// LayeredError 带模块码、HTTP 状态和上下文数据的错误
// 所有 With* / Wrap* 方法返回新实例，包级错误变量不会被修改
type LayeredError struct {
	module     string
	code       int
	msgKey     string // 国际化用的消息 key
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New httpStatus 省略时为 500
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusInternalServerError
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *LayeredError) Code() int       { return e.code }
func (e *LayeredError) Module() string  { return e.module }
func (e *LayeredError) MsgKey() string  { return e.msgKey }
func (e *LayeredError) Message() string { return e.msg }
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }
func (e *LayeredError) Unwrap() error   { return e.cause }

// Data 上下文数据（只读副本）
func (e *LayeredError) Data() map[string]interface{} {
	return e.cloneData()
}

// Is 按错误码比较，使 errors.Is 对 WithMsg/Wrap 出来的副本同样成立
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	return ok && e.code == t.code
}

func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

// WithData 附加一项上下文数据
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = e.cloneData()
	clone.data[key] = value
	return &clone
}

func (e *LayeredError) WithHTTPStatus(status int) *LayeredError {
	clone := *e
	clone.httpStatus = status
	return &clone
}

// Wrap 挂上原始错误；cause 为 nil 时原样返回
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Wrapf 挂上原始错误并替换消息
func (e *LayeredError) Wrapf(cause error, format string, args ...interface{}) *LayeredError {
	return e.Wrap(cause).WithMsgf(format, args...)
}

func (e *LayeredError) cloneData() map[string]interface{} {
	data := make(map[string]interface{}, len(e.data)+1)
	for k, v := range e.data {
		data[k] = v
	}
	return data
}

// FromError 错误链上第一个 LayeredError
func FromError(err error) (*LayeredError, bool) {
	var layered *LayeredError
	if errors.As(err, &layered) {
		return layered, true
	}
	return nil, false
}

// HTTPStatusOf 非 LayeredError 时为 500
func HTTPStatusOf(err error) int {
	if layered, ok := FromError(err); ok {
		return layered.HTTPStatus()
	}
	return http.StatusInternalServerError
}

package bucket

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode bucket 模块错误码前缀
const ModuleCode = 30

var (
	// ErrInvalidConfiguration 带宽配置不合法（重叠、保底过快、容量或周期错误）
	ErrInvalidConfiguration = errcode.Register(errcode.New(ModuleCode, 1, "bucket", "error.bucket.invalid_configuration",
		"invalid bucket configuration", http.StatusInternalServerError))

	// ErrNonPositiveTokens 请求的令牌数不是正数
	ErrNonPositiveTokens = errcode.Register(errcode.New(ModuleCode, 2, "bucket", "error.bucket.non_positive_tokens",
		"number of tokens should be positive", http.StatusBadRequest))

	// ErrNonPositiveWait 等待时间不是正数
	ErrNonPositiveWait = errcode.Register(errcode.New(ModuleCode, 3, "bucket", "error.bucket.non_positive_wait",
		"waiting value should be positive", http.StatusBadRequest))

	// ErrInterrupted 等待中的调用在成功前被取消
	ErrInterrupted = errcode.Register(errcode.New(ModuleCode, 4, "bucket", "error.bucket.interrupted",
		"waiting for tokens was interrupted", http.StatusRequestTimeout))

	// ErrIncompatibleSnapshot 快照布局与配置不匹配
	ErrIncompatibleSnapshot = errcode.Register(errcode.New(ModuleCode, 5, "bucket", "error.bucket.incompatible_snapshot",
		"state snapshot is incompatible with bucket configuration", http.StatusBadRequest))

	// ErrCorruptState 持久化的状态无法解码
	ErrCorruptState = errcode.Register(errcode.New(ModuleCode, 6, "bucket", "error.bucket.corrupt_state",
		"bucket state blob is corrupt", http.StatusInternalServerError))
)

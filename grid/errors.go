package grid

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode grid 模块错误码前缀
const ModuleCode = 31

var (
	// ErrStoreFailure 存储无法执行命令
	ErrStoreFailure = errcode.Register(errcode.New(ModuleCode, 1, "grid", "error.grid.store_failure",
		"bucket store failure", http.StatusServiceUnavailable))

	// ErrConflict 乐观写多次输给并发写入
	ErrConflict = errcode.Register(errcode.New(ModuleCode, 2, "grid", "error.grid.conflict",
		"concurrent modification of bucket state", http.StatusConflict))

	// ErrEmptyKey bucket key 不能为空
	ErrEmptyKey = errcode.Register(errcode.New(ModuleCode, 3, "grid", "error.grid.empty_key",
		"bucket key is empty", http.StatusBadRequest))
)

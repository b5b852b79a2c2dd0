package swagger

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode swagger 模块码
const ModuleCode = 35

var (
	// ErrInvalidConfig swagger 配置段无效
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 1, "swagger", "error.swagger.invalid_config",
		"invalid swagger config", http.StatusInternalServerError))

	// ErrDocNotFound 没有注册对应名字的文档
	ErrDocNotFound = errcode.Register(errcode.New(ModuleCode, 2, "swagger", "error.swagger.doc_not_found",
		"swagger document not found", http.StatusNotFound))
)

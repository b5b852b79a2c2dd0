package application

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode application 模块码
const ModuleCode = 33

// ErrInvalidServerConfig server 配置段无效
var ErrInvalidServerConfig = errcode.Register(errcode.New(ModuleCode, 1, "application", "error.application.invalid_server_config",
	"invalid server config", http.StatusInternalServerError))

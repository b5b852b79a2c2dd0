package httpx

import (
	"github.com/gin-gonic/gin"
)

const errorLoggingConfigKey = "httpx:error_logging_config"

type errorLoggingConfigInternal struct {
	Enable          bool
	IgnoreStatusMap map[int]bool
	FullErrorChain  bool
	LogLevel        string
}

// ErrorLoggingMiddleware 注入错误日志配置，HandleError 据此决定是否记录
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	ignore := make(map[int]bool, len(cfg.IgnoreHTTPStatus))
	for _, status := range cfg.IgnoreHTTPStatus {
		ignore[status] = true
	}
	internal := errorLoggingConfigInternal{
		Enable:          cfg.Enable,
		IgnoreStatusMap: ignore,
		FullErrorChain:  cfg.FullErrorChain,
		LogLevel:        cfg.LogLevel,
	}

	return func(c *gin.Context) {
		c.Set(errorLoggingConfigKey, internal)
		c.Next()
	}
}

// 未挂中间件时不记录
func getErrorLoggingConfig(c *gin.Context) errorLoggingConfigInternal {
	if val, ok := c.Get(errorLoggingConfigKey); ok {
		if cfg, ok := val.(errorLoggingConfigInternal); ok {
			return cfg
		}
	}
	return errorLoggingConfigInternal{IgnoreStatusMap: map[int]bool{}, FullErrorChain: true, LogLevel: "error"}
}

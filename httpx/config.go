// Package httpx 管理接口的统一请求解析、响应格式和错误处理
package httpx

// ErrorLoggingConfig 错误日志配置
type ErrorLoggingConfig struct {
	// Enable 默认关闭
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus 这些状态码不记录，如 [400, 429]
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// FullErrorChain false 时只记录 error_code 和 error_msg
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel error, warn, info
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		IgnoreHTTPStatus: []int{},
		FullErrorChain:   true,
		LogLevel:         "error",
	}
}

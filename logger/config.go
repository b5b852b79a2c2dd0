package logger

import (
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap/zapcore"
)

var validLevels = []interface{}{"debug", "info", "warn", "error", "fatal"}

// ManagerConfig 日志管理器配置（所有模块共享）
type ManagerConfig struct {
	Level    string `mapstructure:"level" json:"level"`
	Encoding string `mapstructure:"encoding" json:"encoding"` // json 或 console
	AppName  string `mapstructure:"app_name" json:"app_name"`

	// EnableConsole 输出到 stderr，stdout 留给命令行结果
	EnableConsole bool `mapstructure:"enable_console" json:"enable_console"`

	// EnableFile 按模块写文件：{base_log_dir}/{module}/{module}-info.log 和 -error.log
	EnableFile bool   `mapstructure:"enable_file" json:"enable_file"`
	BaseLogDir string `mapstructure:"base_log_dir" json:"base_log_dir"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"` // 天
	Compress   bool   `mapstructure:"compress" json:"compress"`

	EnableCaller     bool   `mapstructure:"enable_caller" json:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace" json:"enable_stacktrace"`
	StacktraceLevel  string `mapstructure:"stacktrace_level" json:"stacktrace_level"`
	StacktraceDepth  int    `mapstructure:"stacktrace_depth" json:"stacktrace_depth"` // 0=默认 10 层

	EnableTraceID    bool   `mapstructure:"enable_trace_id" json:"enable_trace_id"`
	TraceIDKey       string `mapstructure:"trace_id_key" json:"trace_id_key"`               // context 中的 key
	TraceIDFieldName string `mapstructure:"trace_id_field_name" json:"trace_id_field_name"` // 日志字段名
}

// DefaultManagerConfig 默认只输出控制台
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Level:            "info",
		Encoding:         "console",
		EnableConsole:    true,
		BaseLogDir:       "logs",
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           28,
		Compress:         true,
		EnableCaller:     true,
		EnableStacktrace: true,
		StacktraceLevel:  "error",
		StacktraceDepth:  5,
		EnableTraceID:    true,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults 填充零值字段；bool 字段无法区分未配置，保留原值
func (c *ManagerConfig) ApplyDefaults() {
	d := DefaultManagerConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.BaseLogDir == "" {
		c.BaseLogDir = d.BaseLogDir
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = d.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = d.StacktraceLevel
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = d.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = d.TraceIDFieldName
	}
}

// Validate 校验配置
func (c ManagerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In(validLevels...)),
		validation.Field(&c.Encoding, validation.Required, validation.In("json", "console")),
		validation.Field(&c.StacktraceLevel, validation.In(validLevels...)),
		validation.Field(&c.BaseLogDir, validation.When(c.EnableFile, validation.Required)),
		validation.Field(&c.MaxSize, validation.When(c.EnableFile, validation.Min(1), validation.Max(10000))),
		validation.Field(&c.MaxBackups, validation.Min(0), validation.Max(1000)),
		validation.Field(&c.MaxAge, validation.Min(0), validation.Max(3650)),
		validation.Field(&c.StacktraceDepth, validation.Min(0)),
	)
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func (c ManagerConfig) infoFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-info.log")
}

func (c ManagerConfig) errorFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-error.log")
}

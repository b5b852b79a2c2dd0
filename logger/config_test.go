package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestManagerConfig_ApplyDefaults(t *testing.T) {
	cfg := ManagerConfig{Level: "debug", EnableFile: true}
	cfg.ApplyDefaults()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, "logs", cfg.BaseLogDir)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, "error", cfg.StacktraceLevel)
	assert.Equal(t, "trace_id", cfg.TraceIDFieldName)
	// bool 保留原值
	assert.False(t, cfg.EnableConsole)
	assert.True(t, cfg.EnableFile)
}

func TestManagerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ManagerConfig)
		wantErr bool
	}{
		{"默认配置", func(*ManagerConfig) {}, false},
		{"无效级别", func(c *ManagerConfig) { c.Level = "verbose" }, true},
		{"无效编码", func(c *ManagerConfig) { c.Encoding = "xml" }, true},
		{"文件输出缺少目录", func(c *ManagerConfig) { c.EnableFile = true; c.BaseLogDir = "" }, true},
		{"未启用文件时不校验目录", func(c *ManagerConfig) { c.BaseLogDir = "" }, false},
		{"负数备份", func(c *ManagerConfig) { c.MaxBackups = -1 }, true},
		{"无效堆栈级别", func(c *ManagerConfig) { c.StacktraceLevel = "trace" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultManagerConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("unknown"))
}

func TestShouldCaptureStacktrace(t *testing.T) {
	cfg := DefaultManagerConfig()
	assert.True(t, shouldCaptureStacktrace("error", cfg))
	assert.False(t, shouldCaptureStacktrace("warn", cfg))

	cfg.EnableStacktrace = false
	assert.False(t, shouldCaptureStacktrace("error", cfg))
}

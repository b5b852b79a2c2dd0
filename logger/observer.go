package logger

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedManager 日志写入内存的 Manager，用于单元测试断言
//
//	m, logs := logger.NewObservedManager(zapcore.DebugLevel)
//	svc := NewService(m.GetLogger("svc"))
//	assert.Equal(t, 1, logs.FilterMessage("store unavailable").Len())
func NewObservedManager(level zapcore.Level) (*Manager, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	cfg := DefaultManagerConfig()
	cfg.Level = level.String()
	cfg.EnableStacktrace = false
	m := NewManager(cfg)
	m.core = core
	return m, logs
}

// NewObservedLogger 单模块的内存 Logger
func NewObservedLogger(module string) (*CtxZapLogger, *observer.ObservedLogs) {
	m, logs := NewObservedManager(zapcore.DebugLevel)
	return m.GetLogger(module), logs
}

package logger

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager 按模块管理 Logger 实例
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	zapLoggers map[string]*zap.Logger
	writers    map[string][]*lumberjack.Logger // 用于关闭文件句柄

	// core 非空时所有模块共用，测试中替换为 observer
	core zapcore.Core

	mu sync.RWMutex
}

var globalManager atomic.Pointer[Manager]

// NewManager 创建独立的 Manager，零值字段自动填充默认值
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		zapLoggers: make(map[string]*zap.Logger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager 设置全局 Manager，返回被替换的旧实例（可能为 nil）
func InitManager(cfg ManagerConfig) *Manager {
	return SetManager(NewManager(cfg))
}

// SetManager 替换全局 Manager
func SetManager(m *Manager) *Manager {
	return globalManager.Swap(m)
}

func defaultManager() *Manager {
	if m := globalManager.Load(); m != nil {
		return m
	}
	globalManager.CompareAndSwap(nil, NewManager(DefaultManagerConfig()))
	return globalManager.Load()
}

// GetLogger 全局 Manager 中模块的 Logger
func GetLogger(module string) *CtxZapLogger {
	return defaultManager().GetLogger(module)
}

// CloseAll 关闭全局 Manager
func CloseAll() {
	if m := globalManager.Load(); m != nil {
		m.CloseAll()
	}
}

// Config 当前配置
func (m *Manager) Config() ManagerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseConfig
}

// GetLogger 获取模块 Logger（线程安全，按需创建），已包含 module 字段
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	zapLogger := m.createLogger(module).With(zap.String("module", module))
	l := &CtxZapLogger{
		// 跳过 CtxZapLogger 包装层
		base:   zapLogger.WithOptions(zap.AddCallerSkip(1)),
		module: module,
		config: &m.baseConfig,
	}
	m.loggers[module] = l
	m.zapLoggers[module] = zapLogger
	return l
}

func (m *Manager) createLogger(module string) *zap.Logger {
	cfg := m.baseConfig
	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if m.core != nil {
		return zap.New(m.core, opts...)
	}

	level := ParseLevel(cfg.Level)
	encoder := createEncoder(cfg.Encoding)
	var cores []zapcore.Core

	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	if cfg.EnableFile {
		infoWriter, infoLumber := createFileWriter(cfg.infoFilePath(module), cfg)
		errorWriter, errorLumber := createFileWriter(cfg.errorFilePath(module), cfg)
		m.writers[module] = []*lumberjack.Logger{infoLumber, errorLumber}

		cores = append(cores,
			zapcore.NewCore(encoder, infoWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})),
			zapcore.NewCore(encoder, errorWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel && lvl >= level
			})),
		)
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// CloseAll 刷新缓冲区并关闭文件句柄（应用退出时调用）
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	for _, l := range m.zapLoggers {
		_ = l.Sync()
	}
	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close()
		}
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.zapLoggers = make(map[string]*zap.Logger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

// ReloadConfig 热重载配置，之后 GetLogger 返回新实例；已持有的旧实例不再写文件
func (m *Manager) ReloadConfig(cfg ManagerConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("新配置验证失败: %w", err)
	}

	m.mu.Lock()
	old := m.baseConfig
	m.resetLocked()
	m.baseConfig = cfg
	m.mu.Unlock()

	if old.Level != cfg.Level {
		m.GetLogger("logger").Debug("日志级别已更新",
			zap.String("old_level", old.Level), zap.String("new_level", cfg.Level))
	}
	return nil
}

func createEncoder(encoding string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func createFileWriter(filename string, cfg ManagerConfig) (zapcore.WriteSyncer, *lumberjack.Logger) {
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	return zapcore.AddSync(lj), lj
}

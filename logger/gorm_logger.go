package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger 实现 gorm logger.Interface，SQL 日志统一写入 sql 模块
type GormLogger struct {
	log           *CtxZapLogger
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
	enableAudit   bool
}

// GormLoggerConfig GORM Logger 配置
type GormLoggerConfig struct {
	SlowThreshold time.Duration // 慢查询阈值，默认 200ms
	LogLevel      gormlogger.LogLevel
	EnableAudit   bool // 以 debug 级别记录每条 SQL
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormlogger.Warn,
		EnableAudit:   false,
	}
}

// NewGormLogger log 为 nil 时使用全局 sql 模块
func NewGormLogger(cfg GormLoggerConfig, log *CtxZapLogger) *GormLogger {
	if log == nil {
		log = GetLogger("sql")
	}
	return &GormLogger{
		log:           log,
		slowThreshold: cfg.SlowThreshold,
		logLevel:      cfg.LogLevel,
		enableAudit:   cfg.EnableAudit,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.logLevel = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.log.DebugCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.log.WarnCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.log.ErrorCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace 记录每次 SQL 执行：错误、慢查询、审计
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && l.logLevel >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		l.log.ErrorCtx(ctx, "SQL 执行错误", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		l.log.WarnCtx(ctx, "慢查询", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.enableAudit && l.logLevel >= gormlogger.Info:
		l.log.DebugCtx(ctx, "SQL 执行", fields...)
	}
}

package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerFactory 按连接配置创建 gorm logger
type GormLoggerFactory func(cfg Config) gormlogger.Interface

// Manager 管理多个数据库连接
type Manager struct {
	instances     map[string]*gorm.DB
	configs       map[string]Config
	loggerFactory GormLoggerFactory
	tracer        trace.TracerProvider
	logger        *logger.CtxZapLogger
	mu            sync.RWMutex
}

// Option Manager 选项
type Option func(*Manager)

// WithGormLoggerFactory 未设置时 gorm 日志静默
func WithGormLoggerFactory(factory GormLoggerFactory) Option {
	return func(m *Manager) { m.loggerFactory = factory }
}

// WithTracerProvider 为每个连接安装 otel 插件
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracer = tp }
}

// WithLogger 连接生命周期日志
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(m *Manager) { m.logger = log }
}

// DefaultLoggerFactory 基于 logger.GormLogger，EnableLog=false 时静默
func DefaultLoggerFactory(log *logger.CtxZapLogger) GormLoggerFactory {
	return func(cfg Config) gormlogger.Interface {
		if !cfg.EnableLog {
			return gormlogger.Default.LogMode(gormlogger.Silent)
		}
		gormCfg := logger.DefaultGormLoggerConfig()
		gormCfg.SlowThreshold = cfg.SlowThreshold
		gormCfg.EnableAudit = cfg.EnableAudit
		if cfg.EnableAudit {
			gormCfg.LogLevel = gormlogger.Info
		}
		return logger.NewGormLogger(gormCfg, log)
	}
}

// NewManager 打开所有连接，任一失败时关闭已打开的
func NewManager(ctx context.Context, configs map[string]Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		instances: make(map[string]*gorm.DB),
		configs:   make(map[string]Config),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.GetLogger("database")
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("invalid database config %s: %w", name, err)
		}

		db, err := m.open(ctx, cfg)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("open database %s failed: %w", name, err)
		}

		m.instances[name] = db
		m.configs[name] = cfg
		m.logger.DebugCtx(ctx, "数据库连接成功", zap.String("name", name), zap.String("driver", cfg.Driver))
	}

	return m, nil
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

func (m *Manager) open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Silent)
	if m.loggerFactory != nil {
		gormLogger = m.loggerFactory(cfg)
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if m.tracer != nil {
		plugin := NewOtelPlugin(m.tracer).WithTraceSQL(cfg.TraceSQL).WithSQLMaxLen(cfg.TraceSQLMaxLen)
		if err := db.Use(plugin); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("install otel plugin: %w", err)
		}
	}
	return db, nil
}

// DB 指定连接，不存在时返回 nil
func (m *Manager) DB(name string) *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[name]
}

// Names 所有连接名（有序）
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping 检查所有连接
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, db := range m.instances {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get sql.DB for %s: %w", name, err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database %s failed: %w", name, err)
		}
	}
	return nil
}

// Close 关闭所有连接
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, db := range m.instances {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			m.logger.Error("关闭数据库连接失败", zap.String("name", name), zap.Error(err))
		}
	}
	m.instances = make(map[string]*gorm.DB)
	m.configs = make(map[string]Config)
	return nil
}

// Shutdown samber/do 容器关闭时调用
func (m *Manager) Shutdown() error {
	// 未配置时 Provider 返回 nil
	if m == nil {
		return nil
	}
	return m.Close()
}

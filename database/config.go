// Package database 多实例 gorm 连接管理
package database

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config 单个连接配置（database.connections.<name>）
type Config struct {
	Driver          string        `mapstructure:"driver" json:"driver"`
	DSN             string        `mapstructure:"dsn" json:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`

	EnableLog     bool          `mapstructure:"enable_log" json:"enable_log"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" json:"slow_threshold"`
	EnableAudit   bool          `mapstructure:"enable_audit" json:"enable_audit"` // debug 级别记录每条 SQL

	// TraceSQL 在 span 上记录 SQL 语句
	TraceSQL       bool `mapstructure:"trace_sql" json:"trace_sql"`
	TraceSQLMaxLen int  `mapstructure:"trace_sql_max_len" json:"trace_sql_max_len"`
}

// ApplyDefaults 填充零值字段
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 100
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	if c.TraceSQLMaxLen <= 0 {
		c.TraceSQLMaxLen = 1000
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverMySQL, DriverPostgres, DriverSQLite)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxIdleConns, validation.Max(c.MaxOpenConns)),
	)
}

package redis

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	ModeStandalone = "standalone"
	ModeCluster    = "cluster"
)

// Config 单个 Redis 实例配置（redis.instances.<name>）
type Config struct {
	// Mode standalone（默认）或 cluster
	Mode string `mapstructure:"mode" json:"mode"`

	// Addrs 单机模式使用第一个地址，集群模式使用全部
	Addrs []string `mapstructure:"addrs" json:"addrs"`
	// Addr 单地址写法，等价于只有一个元素的 Addrs
	Addr string `mapstructure:"addr" json:"addr"`

	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"` // 仅单机模式

	PoolSize     int           `mapstructure:"pool_size" json:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" json:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
}

// ApplyDefaults 填充零值字段
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandalone
	}
	if c.Addr != "" && len(c.Addrs) == 0 {
		c.Addrs = []string{c.Addr}
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStandalone, ModeCluster)),
		validation.Field(&c.Addrs, validation.Required),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15),
			validation.When(c.Mode == ModeCluster, validation.In(0).Error("db is not supported in cluster mode"))),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
	)
}

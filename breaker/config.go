package breaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 熔断配置，保护对远端存储的调用
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// FailureThreshold 连续失败多少次后熔断
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold"`

	// OpenTimeout 熔断持续时间，之后进入半开
	OpenTimeout time.Duration `mapstructure:"open_timeout" json:"open_timeout"`

	// HalfOpenRequests 半开状态放行的试探请求数，全部成功才恢复
	HalfOpenRequests int `mapstructure:"half_open_requests" json:"half_open_requests"`
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		HalfOpenRequests: 1,
	}
}

func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = def.HalfOpenRequests
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureThreshold, validation.Min(1)),
		validation.Field(&c.OpenTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.HalfOpenRequests, validation.Min(1)),
	)
}

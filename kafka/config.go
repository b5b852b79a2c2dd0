package kafka

import (
	"time"

	"github.com/KOMKZ/go-yogan-bucket/limiter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SASL 认证机制
const (
	MechanismPlain       = "PLAIN"
	MechanismSCRAMSHA256 = "SCRAM-SHA-256"
	MechanismSCRAMSHA512 = "SCRAM-SHA-512"
)

// Config kafka 配置段，只用于投递限流事件
type Config struct {
	Enabled  bool     `mapstructure:"enabled" json:"enabled"`
	Brokers  []string `mapstructure:"brokers" json:"brokers"`
	Version  string   `mapstructure:"version" json:"version"`
	ClientID string   `mapstructure:"client_id" json:"client_id"`
	Topic    string   `mapstructure:"topic" json:"topic"`

	// Events 需要投递的事件类型，放行事件量太大默认不投递
	Events []string `mapstructure:"events" json:"events"`

	Producer ProducerConfig `mapstructure:"producer" json:"producer"`
	SASL     *SASLConfig    `mapstructure:"sasl" json:"sasl"`
	TLS      *TLSConfig     `mapstructure:"tls" json:"tls"`
}

type ProducerConfig struct {
	// RequiredAcks 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	RequiredAcks   int           `mapstructure:"required_acks" json:"required_acks"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
	RetryMax       int           `mapstructure:"retry_max" json:"retry_max"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	Compression    string        `mapstructure:"compression" json:"compression"` // none, gzip, snappy, lz4, zstd
	BatchSize      int           `mapstructure:"batch_size" json:"batch_size"`
	FlushFrequency time.Duration `mapstructure:"flush_frequency" json:"flush_frequency"`
}

type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Mechanism string `mapstructure:"mechanism" json:"mechanism"`
	Username  string `mapstructure:"username" json:"username"`
	Password  string `mapstructure:"password" json:"-"`
}

type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled" json:"enabled"`
	CAFile             string `mapstructure:"ca_file" json:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`
}

func DefaultConfig() Config {
	return Config{
		Version:  "3.8.0",
		ClientID: "go-yogan-bucket",
		Topic:    "bucket.events",
		Events: []string{
			string(limiter.EventRejected),
			string(limiter.EventWaitTimeout),
			string(limiter.EventStateRestored),
		},
		Producer: ProducerConfig{
			RequiredAcks:   1,
			Timeout:        10 * time.Second,
			RetryMax:       3,
			RetryBackoff:   100 * time.Millisecond,
			Compression:    "none",
			BatchSize:      100,
			FlushFrequency: 100 * time.Millisecond,
		},
	}
}

// ApplyDefaults 填充零值字段，required_acks=0 是合法值不做填充
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	if c.Topic == "" {
		c.Topic = def.Topic
	}
	if len(c.Events) == 0 {
		c.Events = def.Events
	}
	if c.Producer.Timeout <= 0 {
		c.Producer.Timeout = def.Producer.Timeout
	}
	if c.Producer.RetryBackoff <= 0 {
		c.Producer.RetryBackoff = def.Producer.RetryBackoff
	}
	if c.Producer.Compression == "" {
		c.Producer.Compression = def.Producer.Compression
	}
	if c.Producer.BatchSize <= 0 {
		c.Producer.BatchSize = def.Producer.BatchSize
	}
	if c.Producer.FlushFrequency <= 0 {
		c.Producer.FlushFrequency = def.Producer.FlushFrequency
	}
}

var eventTypes = []interface{}{
	string(limiter.EventAllowed),
	string(limiter.EventRejected),
	string(limiter.EventWaitStart),
	string(limiter.EventWaitSuccess),
	string(limiter.EventWaitTimeout),
	string(limiter.EventWaitInterrupted),
	string(limiter.EventStateRestored),
	string(limiter.EventEvicted),
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	sasl := c.SASL != nil && c.SASL.Enabled
	errs := validation.Errors{
		"brokers": validation.Validate(c.Brokers, validation.Required,
			validation.Each(validation.Required)),
		"topic":  validation.Validate(c.Topic, validation.Required),
		"events": validation.Validate(c.Events, validation.Each(validation.In(eventTypes...))),
		"producer.required_acks": validation.Validate(c.Producer.RequiredAcks,
			validation.Min(-1), validation.Max(1)),
		"producer.compression": validation.Validate(c.Producer.Compression,
			validation.In("none", "gzip", "snappy", "lz4", "zstd")),
	}
	if sasl {
		errs["sasl.mechanism"] = validation.Validate(c.SASL.Mechanism, validation.Required,
			validation.In(MechanismPlain, MechanismSCRAMSHA256, MechanismSCRAMSHA512))
		errs["sasl.username"] = validation.Validate(c.SASL.Username, validation.Required)
		errs["sasl.password"] = validation.Validate(c.SASL.Password, validation.Required)
	}
	return errs.Filter()
}

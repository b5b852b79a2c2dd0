package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// 导出器类型
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNoop   = "noop"
)

// 采样器类型
const (
	SamplerAlwaysOn    = "always_on"
	SamplerAlwaysOff   = "always_off"
	SamplerRatio       = "trace_id_ratio"
	SamplerParentBased = "parent_based_always_on"
)

// Config OpenTelemetry 配置
type Config struct {
	Enabled        bool                   `mapstructure:"enabled" json:"enabled"`
	ServiceName    string                 `mapstructure:"service_name" json:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version" json:"service_version"`
	Exporter       ExporterConfig         `mapstructure:"exporter" json:"exporter"`
	Sampler        SamplerConfig          `mapstructure:"sampler" json:"sampler"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes" json:"resource_attributes"` // 支持嵌套，值支持 ${ENV}
	Batch          BatchConfig            `mapstructure:"batch" json:"batch"`
	Metrics        MetricsConfig          `mapstructure:"metrics" json:"metrics"`
}

// ExporterConfig 导出器配置，trace 和 metrics 共用
type ExporterConfig struct {
	Type     string            `mapstructure:"type" json:"type"` // otlp, stdout, noop
	Endpoint string            `mapstructure:"endpoint" json:"endpoint"`
	Insecure bool              `mapstructure:"insecure" json:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout" json:"timeout"`
	Headers  map[string]string `mapstructure:"headers" json:"headers"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type" json:"type"`
	Ratio float64 `mapstructure:"ratio" json:"ratio"` // 仅 trace_id_ratio 生效
}

// BatchConfig span 批量导出，关闭时同步导出
type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled" json:"enabled"`
	MaxQueueSize       int           `mapstructure:"max_queue_size" json:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size" json:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay" json:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout" json:"export_timeout"`
}

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled" json:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval" json:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout" json:"export_timeout"`

	// 各组件是否上报自身指标
	Redis   bool `mapstructure:"redis" json:"redis"`
	Limiter bool `mapstructure:"limiter" json:"limiter"`
}

// DefaultConfig 默认关闭
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "go-yogan-bucket",
		ServiceVersion: "dev",
		Exporter: ExporterConfig{
			Type:    ExporterStdout,
			Timeout: 10 * time.Second,
		},
		Sampler: SamplerConfig{Type: SamplerParentBased, Ratio: 1},
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
			ExportTimeout:  10 * time.Second,
			Redis:          true,
			Limiter:        true,
		},
	}
}

// ApplyDefaults 填充零值字段
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = def.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = def.ServiceVersion
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = def.Exporter.Type
	}
	if c.Exporter.Timeout <= 0 {
		c.Exporter.Timeout = def.Exporter.Timeout
	}
	if c.Sampler.Type == "" {
		c.Sampler = def.Sampler
	}
	if c.Batch.MaxQueueSize <= 0 {
		c.Batch.MaxQueueSize = def.Batch.MaxQueueSize
	}
	if c.Batch.MaxExportBatchSize <= 0 {
		c.Batch.MaxExportBatchSize = def.Batch.MaxExportBatchSize
	}
	if c.Batch.ScheduleDelay <= 0 {
		c.Batch.ScheduleDelay = def.Batch.ScheduleDelay
	}
	if c.Batch.ExportTimeout <= 0 {
		c.Batch.ExportTimeout = def.Batch.ExportTimeout
	}
	if c.Metrics.ExportInterval <= 0 {
		c.Metrics.ExportInterval = def.Metrics.ExportInterval
	}
	if c.Metrics.ExportTimeout <= 0 {
		c.Metrics.ExportTimeout = def.Metrics.ExportTimeout
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.Errors{
		"service_name": validation.Validate(c.ServiceName, validation.Required),
		"exporter.type": validation.Validate(c.Exporter.Type,
			validation.Required, validation.In(ExporterOTLP, ExporterStdout, ExporterNoop)),
		"exporter.endpoint": validation.Validate(c.Exporter.Endpoint,
			validation.When(c.Exporter.Type == ExporterOTLP, validation.Required)),
		"sampler.type": validation.Validate(c.Sampler.Type,
			validation.In(SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased)),
		"sampler.ratio": validation.Validate(c.Sampler.Ratio,
			validation.Min(0.0), validation.Max(1.0)),
	}.Filter()
}

package limiter

import (
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/breaker"
	"github.com/KOMKZ/go-yogan-bucket/bucket"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// 存储类型
const (
	StoreTypeMemory   = "memory"
	StoreTypeRedis    = "redis"
	StoreTypeDatabase = "database"
	StoreTypeEtcd     = "etcd"
)

// 远端存储不可用时的处理
const (
	FailClosed = "fail_closed"
	FailOpen   = "fail_open"
)

// 时间精度
const (
	PrecisionMillis = "millis"
	PrecisionNanos  = "nanos"
)

// Config 限流配置
type Config struct {
	// Enabled false 表示直接放行
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// StoreType memory, redis, database, etcd
	StoreType string `mapstructure:"store_type" json:"store_type"`

	Redis    RedisInstanceConfig    `mapstructure:"redis" json:"redis"`
	Database DatabaseInstanceConfig `mapstructure:"database" json:"database"`
	Etcd     EtcdConfig             `mapstructure:"etcd" json:"etcd"`

	// FailurePolicy 远端存储出错或熔断时：fail_closed 返回错误，fail_open 放行
	FailurePolicy string `mapstructure:"failure_policy" json:"failure_policy"`

	// Breaker 远端存储熔断，memory 存储忽略
	Breaker breaker.Config `mapstructure:"breaker" json:"breaker"`

	// TimePrecision millis (默认) 或 nanos
	TimePrecision string `mapstructure:"time_precision" json:"time_precision"`

	EventBusBuffer int `mapstructure:"event_bus_buffer" json:"event_bus_buffer"`

	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`

	// AsyncPoolSize AcquireAsync 使用的协程池大小
	AsyncPoolSize int `mapstructure:"async_pool_size" json:"async_pool_size"`

	// IdleTTL 本地 bucket 闲置多久后回收，0 表示不回收
	IdleTTL         time.Duration `mapstructure:"idle_ttl" json:"idle_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" json:"janitor_interval"`

	// Default 未单独配置的资源使用；为空时这些资源直接放行
	Default ResourceConfig `mapstructure:"default" json:"default"`

	// Resources 资源级配置（覆盖 Default）
	Resources map[string]ResourceConfig `mapstructure:"resources" json:"resources"`
}

// ResourceConfig 单个资源的 bucket 定义
type ResourceConfig struct {
	Bandwidths []BandwidthConfig `mapstructure:"bandwidths" json:"bandwidths"`

	// WaitTimeout Wait/WaitN 的最长等待
	WaitTimeout time.Duration `mapstructure:"wait_timeout" json:"wait_timeout"`
}

// BandwidthConfig 一条带宽
type BandwidthConfig struct {
	Capacity      int64         `mapstructure:"capacity" json:"capacity"`
	Period        time.Duration `mapstructure:"period" json:"period"`
	InitialTokens *int64        `mapstructure:"initial_tokens" json:"initial_tokens"`
	Guaranteed    bool          `mapstructure:"guaranteed" json:"guaranteed"`

	// Warmup 非空时忽略 Capacity
	Warmup *WarmupConfig `mapstructure:"warmup" json:"warmup"`
}

// WarmupConfig 预热容量：闲置后从 Cold 逐步升到 Hot
type WarmupConfig struct {
	Cold   int64         `mapstructure:"cold" json:"cold"`
	Hot    int64         `mapstructure:"hot" json:"hot"`
	Period time.Duration `mapstructure:"period" json:"period"`
}

// RedisInstanceConfig 引用 redis.instances 中的实例
type RedisInstanceConfig struct {
	Instance  string        `mapstructure:"instance" json:"instance"`
	KeyPrefix string        `mapstructure:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" json:"ttl"`
}

// DatabaseInstanceConfig 引用 database.connections 中的连接
type DatabaseInstanceConfig struct {
	Instance string `mapstructure:"instance" json:"instance"`
	Table    string `mapstructure:"table" json:"table"`
}

// EtcdConfig etcd 直连配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints" json:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix" json:"key_prefix"`
}

// DefaultConfig 默认配置（未启用）
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		StoreType:      StoreTypeMemory,
		FailurePolicy:  FailClosed,
		Breaker:        breaker.DefaultConfig(),
		TimePrecision:  PrecisionMillis,
		EventBusBuffer: 500,
		AsyncPoolSize:  64,
		Default:        DefaultResourceConfig(),
		Resources:      make(map[string]ResourceConfig),
	}
}

// DefaultResourceConfig 100 QPS，允许 200 突发
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		Bandwidths: []BandwidthConfig{
			{Capacity: 200, Period: 2 * time.Second},
		},
		WaitTimeout: time.Second,
	}
}

// ApplyDefaults 填充零值字段
func (c *Config) ApplyDefaults() {
	if c.StoreType == "" {
		c.StoreType = StoreTypeMemory
	}
	if c.TimePrecision == "" {
		c.TimePrecision = PrecisionMillis
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = FailClosed
	}
	c.Breaker.ApplyDefaults()
	if c.EventBusBuffer <= 0 {
		c.EventBusBuffer = 500
	}
	if c.AsyncPoolSize <= 0 {
		c.AsyncPoolSize = 64
	}
	if c.IdleTTL > 0 && c.JanitorInterval <= 0 {
		c.JanitorInterval = time.Minute
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "limiter:"
	}
	if c.Etcd.KeyPrefix == "" {
		c.Etcd.KeyPrefix = "/limiter/"
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Resources == nil {
		c.Resources = make(map[string]ResourceConfig)
	}
}

// Validate 校验配置，资源配置会先与 Default 合并
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	c.ApplyDefaults()

	errs := validation.Errors{
		"store_type": validation.Validate(c.StoreType,
			validation.In(StoreTypeMemory, StoreTypeRedis, StoreTypeDatabase, StoreTypeEtcd)),
		// 单调时钟的起点是进程级的，不能跨进程共享
		"time_precision": validation.Validate(c.TimePrecision,
			validation.In(PrecisionMillis, PrecisionNanos),
			validation.When(c.StoreType != StoreTypeMemory,
				validation.In(PrecisionMillis).Error("nanos precision requires memory store"))),
		"redis.instance": validation.Validate(c.Redis.Instance,
			validation.When(c.StoreType == StoreTypeRedis, validation.Required)),
		"database.instance": validation.Validate(c.Database.Instance,
			validation.When(c.StoreType == StoreTypeDatabase, validation.Required)),
		"etcd.endpoints": validation.Validate(c.Etcd.Endpoints,
			validation.When(c.StoreType == StoreTypeEtcd, validation.Required)),
		"idle_ttl": validation.Validate(c.IdleTTL, validation.Min(time.Duration(0))),
		"failure_policy": validation.Validate(c.FailurePolicy,
			validation.In(FailClosed, FailOpen)),
		"breaker": c.Breaker.Validate(),
	}

	if !c.Default.isEmpty() {
		errs["default"] = c.Default.check()
	}

	for name, rc := range c.Resources {
		merged := rc
		if !c.Default.isEmpty() {
			merged = c.Default.Merge(rc)
		}
		c.Resources[name] = merged
		errs["resources."+name] = merged.check()
	}

	return errs.Filter()
}

// check 结构校验 + 带宽组合校验
func (rc ResourceConfig) check() error {
	if err := rc.Validate(); err != nil {
		return err
	}
	_, err := rc.Build(bucket.SystemMilliseconds)
	return err
}

// Validate 字段级校验
func (rc ResourceConfig) Validate() error {
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Bandwidths, validation.Required),
		validation.Field(&rc.WaitTimeout, validation.Min(time.Duration(0))),
	)
}

func (bc BandwidthConfig) Validate() error {
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.Capacity, validation.When(bc.Warmup == nil, validation.Required, validation.Min(int64(1)))),
		validation.Field(&bc.Period, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&bc.InitialTokens, validation.Min(int64(0))),
		validation.Field(&bc.Warmup),
	)
}

func (wc WarmupConfig) Validate() error {
	return validation.ValidateStruct(&wc,
		validation.Field(&wc.Cold, validation.Required, validation.Min(int64(1))),
		validation.Field(&wc.Hot, validation.Required, validation.Min(wc.Cold)),
		validation.Field(&wc.Period, validation.Required, validation.Min(time.Duration(1))),
	)
}

// Definition 转换为 bucket 的带宽定义
func (bc BandwidthConfig) Definition() bucket.BandwidthDefinition {
	capacity := bucket.Constant(bc.Capacity)
	if bc.Warmup != nil {
		capacity = bucket.Warmup(bc.Warmup.Cold, bc.Warmup.Hot, bc.Warmup.Period)
	}

	def := bucket.Limited(capacity, bc.Period)
	if bc.Guaranteed {
		def = bucket.Guaranteed(capacity, bc.Period)
	}
	if bc.InitialTokens != nil {
		def = def.WithInitialTokens(*bc.InitialTokens)
	}
	return def
}

// Build 构建 bucket 配置（包含重叠、保底带宽等组合校验）
func (rc ResourceConfig) Build(meter bucket.TimeMeter) (*bucket.Configuration, error) {
	defs := make([]bucket.BandwidthDefinition, 0, len(rc.Bandwidths))
	for _, bc := range rc.Bandwidths {
		defs = append(defs, bc.Definition())
	}
	return bucket.NewConfiguration(meter, defs...)
}

// Merge 用 override 的非零字段覆盖
func (rc ResourceConfig) Merge(override ResourceConfig) ResourceConfig {
	result := rc
	if len(override.Bandwidths) > 0 {
		result.Bandwidths = override.Bandwidths
	}
	if override.WaitTimeout > 0 {
		result.WaitTimeout = override.WaitTimeout
	}
	return result
}

func (rc ResourceConfig) isEmpty() bool {
	return len(rc.Bandwidths) == 0
}

// GetResourceConfig 资源级配置优先，回退到 Default；都没有时 ok=false
// 经 viper 加载的资源名会被转为小写，精确匹配失败时再按小写查找
func (c *Config) GetResourceConfig(resource string) (ResourceConfig, bool) {
	if cfg, ok := c.Resources[resource]; ok {
		return cfg, true
	}
	if cfg, ok := c.Resources[strings.ToLower(resource)]; ok {
		return cfg, true
	}
	if c.Default.isEmpty() {
		return ResourceConfig{}, false
	}
	return c.Default, true
}

// TimeMeter 按精度返回时钟
func (c *Config) TimeMeter() bucket.TimeMeter {
	if c.TimePrecision == PrecisionNanos {
		return bucket.SystemNanotime
	}
	return bucket.SystemMilliseconds
}

package application

import (
	"regexp"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/auth"
	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HTTP 限流键
const (
	KeyByPath   = "path"
	KeyByIP     = "ip"
	KeyByPathIP = "path_ip"
	KeyByAPIKey = "api_key"
	KeyByJWT    = "jwt"
)

var adminPrefixPattern = regexp.MustCompile(`^/[A-Za-z0-9/_-]*[A-Za-z0-9_-]$`)

// ServerConfig server 配置段
type ServerConfig struct {
	HTTP            HTTPConfig    `mapstructure:"http" json:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc" json:"grpc"`
	Admin           AdminConfig   `mapstructure:"admin" json:"admin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled" json:"enabled"`
	Addr         string        `mapstructure:"addr" json:"addr"`
	Mode         string        `mapstructure:"mode" json:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`

	// 限流中间件
	KeyFunc   string   `mapstructure:"key_func" json:"key_func"`
	APIKey    string   `mapstructure:"api_key_header" json:"api_key_header"`
	Wait      bool     `mapstructure:"wait" json:"wait"`
	SkipPaths []string `mapstructure:"skip_paths" json:"skip_paths"`

	// JWT key_func=jwt 时使用
	JWT JWTConfig `mapstructure:"jwt" json:"jwt"`
}

// JWTConfig 按 token 声明限流，token 无效时按 IP
type JWTConfig struct {
	Secret  string   `mapstructure:"secret" json:"-"`
	Claim   string   `mapstructure:"claim" json:"claim"`
	Methods []string `mapstructure:"methods" json:"methods"`
}

// AdminConfig 管理接口，挂在 HTTP 服务上且不受限流
type AdminConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix"`

	ErrorLogging httpx.ErrorLoggingConfig `mapstructure:"error_logging" json:"error_logging"`
	Auth         auth.Config              `mapstructure:"auth" json:"auth"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTP: HTTPConfig{
			Enabled:      true,
			Addr:         ":8080",
			Mode:         gin.ReleaseMode,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			KeyFunc:      KeyByPath,
			APIKey:       "X-API-Key",
			SkipPaths:    []string{"/healthz"},
		},
		GRPC: GRPCConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Admin: AdminConfig{
			PathPrefix:   "/admin/v1",
			ErrorLogging: httpx.DefaultErrorLoggingConfig(),
			Auth:         auth.DefaultConfig(),
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// ApplyDefaults 填充零值字段
func (c *ServerConfig) ApplyDefaults() {
	def := DefaultServerConfig()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.Mode == "" {
		c.HTTP.Mode = def.HTTP.Mode
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = def.HTTP.ReadTimeout
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = def.HTTP.WriteTimeout
	}
	if c.HTTP.KeyFunc == "" {
		c.HTTP.KeyFunc = def.HTTP.KeyFunc
	}
	if c.HTTP.APIKey == "" {
		c.HTTP.APIKey = def.HTTP.APIKey
	}
	if c.HTTP.JWT.Claim == "" {
		c.HTTP.JWT.Claim = "sub"
	}
	if c.Admin.PathPrefix == "" {
		c.Admin.PathPrefix = def.Admin.PathPrefix
	}
	if c.Admin.ErrorLogging.LogLevel == "" {
		c.Admin.ErrorLogging.LogLevel = def.Admin.ErrorLogging.LogLevel
	}
	c.Admin.Auth.ApplyDefaults()
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = def.GRPC.Addr
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

func (c ServerConfig) adminAuthErr() error {
	if !c.Admin.Enabled {
		return nil
	}
	return c.Admin.Auth.Validate()
}

func (c ServerConfig) Validate() error {
	return validation.Errors{
		"http.mode": validation.Validate(c.HTTP.Mode,
			validation.In(gin.DebugMode, gin.ReleaseMode, gin.TestMode)),
		"http.key_func": validation.Validate(c.HTTP.KeyFunc,
			validation.In(KeyByPath, KeyByIP, KeyByPathIP, KeyByAPIKey, KeyByJWT)),
		"http.jwt.secret": validation.Validate(c.HTTP.JWT.Secret,
			validation.When(c.HTTP.KeyFunc == KeyByJWT, validation.Required)),
		"admin.path_prefix": validation.Validate(c.Admin.PathPrefix,
			validation.When(c.Admin.Enabled, validation.Required, validation.Match(adminPrefixPattern))),
		"admin.enabled": validation.Validate(c.Admin.Enabled,
			validation.When(c.Admin.Enabled && !c.HTTP.Enabled, validation.In(false).Error("admin api requires http server"))),
		"admin.auth": c.adminAuthErr(),
		"http.addr":  validation.Validate(c.HTTP.Addr, validation.When(c.HTTP.Enabled, validation.Required)),
		"grpc.addr":  validation.Validate(c.GRPC.Addr, validation.When(c.GRPC.Enabled, validation.Required)),
	}.Filter()
}

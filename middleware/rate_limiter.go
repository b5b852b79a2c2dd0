package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResourceKey 当前请求对应的限流资源名，存于 gin.Context
const ResourceKey = "ratelimit:resource"

// RateLimiterConfig 限流中间件配置
type RateLimiterConfig struct {
	// Limiter 限流器（必需）
	Limiter limiter.Limiter

	// KeyFunc 资源键生成函数（默认：method:path）
	KeyFunc func(*gin.Context) string

	// CostFunc 每个请求消耗的令牌数（默认：1）
	CostFunc func(*gin.Context) int64

	// Wait true 时在资源的 WaitTimeout 内排队等待，false 时立即拒绝
	Wait bool

	// ErrorHandler 限流器内部错误（默认：记录日志后放行）
	ErrorHandler func(*gin.Context, error)

	// RateLimitHandler 被限流时的响应（默认：429）
	RateLimitHandler func(*gin.Context)

	// SkipFunc 跳过限流的条件函数（可选）
	SkipFunc func(*gin.Context) bool

	// SkipPaths 跳过限流的路径列表（可选）
	SkipPaths []string

	Logger *logger.CtxZapLogger
}

// DefaultRateLimiterConfig 默认限流配置
func DefaultRateLimiterConfig(l limiter.Limiter) RateLimiterConfig {
	return RateLimiterConfig{
		Limiter:          l,
		KeyFunc:          RateLimiterKeyByPath,
		CostFunc:         func(*gin.Context) int64 { return 1 },
		RateLimitHandler: defaultRateLimitHandler,
	}
}

func defaultRateLimitHandler(c *gin.Context) {
	httpx.AbortJson(c, limiter.ErrRateLimited.WithData("resource", c.GetString(ResourceKey)))
}

// RateLimiter 创建限流中间件
//
// 用法：
//
//	// 基本用法
//	engine.Use(middleware.RateLimiter(limiterManager))
//
//	// 自定义配置
//	cfg := middleware.DefaultRateLimiterConfig(limiterManager)
//	cfg.KeyFunc = middleware.RateLimiterKeyByIP
//	cfg.SkipPaths = []string{"/health", "/metrics"}
//	engine.Use(middleware.RateLimiterWithConfig(cfg))
func RateLimiter(l limiter.Limiter) gin.HandlerFunc {
	return RateLimiterWithConfig(DefaultRateLimiterConfig(l))
}

// RateLimiterWithConfig 创建自定义配置的限流中间件
func RateLimiterWithConfig(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		panic("RateLimiterConfig.Limiter cannot be nil")
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RateLimiterKeyByPath
	}
	if cfg.CostFunc == nil {
		cfg.CostFunc = func(*gin.Context) int64 { return 1 }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger("limiter")
	}
	if cfg.ErrorHandler == nil {
		log := cfg.Logger
		// 降级：限流器异常时放行
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			log.WarnCtx(c.Request.Context(), "⚠️  rate limit check failed, allowing request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.Next()
		}
	}
	if cfg.RateLimitHandler == nil {
		cfg.RateLimitHandler = defaultRateLimitHandler
	}

	skipPaths := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if !cfg.Limiter.IsEnabled() {
			c.Next()
			return
		}
		if _, skip := skipPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}

		resource := cfg.KeyFunc(c)
		c.Set(ResourceKey, resource)
		cost := cfg.CostFunc(c)
		ctx := c.Request.Context()

		if cfg.Wait {
			err := cfg.Limiter.WaitN(ctx, resource, cost)
			switch {
			case errors.Is(err, limiter.ErrWaitTimeout):
				cfg.RateLimitHandler(c)
			case err != nil:
				cfg.ErrorHandler(c, err)
			default:
				c.Next()
			}
			return
		}

		allowed, err := cfg.Limiter.AllowN(ctx, resource, cost)
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}
		if !allowed {
			cfg.RateLimitHandler(c)
			return
		}
		c.Next()
	}
}

// RateLimiterKeyByPath 按 method:path 限流，使用路由模板（/users/:id）而不是实际路径
func RateLimiterKeyByPath(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return fmt.Sprintf("%s:%s", strings.ToUpper(c.Request.Method), path)
}

// RateLimiterKeyByIP 按客户端 IP 限流
func RateLimiterKeyByIP(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimiterKeyByUser 按用户限流，用户 ID 从 gin 上下文读取
//
//	cfg.KeyFunc = middleware.RateLimiterKeyByUser("user_id")
func RateLimiterKeyByUser(userIDKey string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		userID, exists := c.Get(userIDKey)
		if !exists {
			return "user:anonymous"
		}
		return fmt.Sprintf("user:%v", userID)
	}
}

// RateLimiterKeyByPathAndIP 按路径 + IP 组合限流
func RateLimiterKeyByPathAndIP(c *gin.Context) string {
	return fmt.Sprintf("%s:%s", RateLimiterKeyByPath(c), c.ClientIP())
}

// RateLimiterKeyByAPIKey 按 API Key 限流（Header 优先，其次 query 参数 api_key）
//
//	cfg.KeyFunc = middleware.RateLimiterKeyByAPIKey("X-API-Key")
func RateLimiterKeyByAPIKey(headerName string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		apiKey := c.GetHeader(headerName)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if apiKey == "" {
			return "apikey:anonymous"
		}
		return fmt.Sprintf("apikey:%s", apiKey)
	}
}

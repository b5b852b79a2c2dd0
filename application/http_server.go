package application

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/KOMKZ/go-yogan-bucket/admin"
	"github.com/KOMKZ/go-yogan-bucket/auth"
	_ "github.com/KOMKZ/go-yogan-bucket/docs"
	"github.com/KOMKZ/go-yogan-bucket/health"
	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/middleware"
	"github.com/KOMKZ/go-yogan-bucket/swagger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HTTPServer gin 服务，全局挂载限流中间件
type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	logger *logger.CtxZapLogger
	addr   net.Addr
}

type httpOptions struct {
	admin       *AdminConfig
	auth        *auth.Authenticator
	swagger     *swagger.Manager
	tracer      trace.TracerProvider
	serviceName string
}

// HTTPOption 可选组件
type HTTPOption func(*httpOptions)

// WithAdmin 挂载管理接口，cfg.Enabled 为 false 时忽略
func WithAdmin(cfg AdminConfig) HTTPOption {
	return func(o *httpOptions) {
		if cfg.Enabled {
			o.admin = &cfg
		}
	}
}

// WithAdminAuth 管理接口要求 Basic 认证
func WithAdminAuth(a *auth.Authenticator) HTTPOption {
	return func(o *httpOptions) {
		o.auth = a
	}
}

// WithSwagger 挂载 Swagger UI 和 OpenAPI 文档
func WithSwagger(m *swagger.Manager) HTTPOption {
	return func(o *httpOptions) {
		o.swagger = m
	}
}

// WithTracing 为每个请求创建 span
func WithTracing(serviceName string, tp trace.TracerProvider) HTTPOption {
	return func(o *httpOptions) {
		o.serviceName = serviceName
		o.tracer = tp
	}
}

// NewHTTPServer agg 非空时注册 /healthz（不受限流）
func NewHTTPServer(cfg HTTPConfig, lm *limiter.Manager, agg *health.Aggregator, log *logger.CtxZapLogger, opts ...HTTPOption) *HTTPServer {
	if log == nil {
		log = logger.GetLogger("http")
	}
	var o httpOptions
	for _, opt := range opts {
		opt(&o)
	}

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())

	// span 要在限流之前创建，被拒绝的请求也有 trace
	if o.tracer != nil {
		serviceName := o.serviceName
		if serviceName == "" {
			serviceName = "bucket-http"
		}
		engine.Use(otelgin.Middleware(serviceName, otelgin.WithTracerProvider(o.tracer)))
		log.Debug("✅ otel trace middleware enabled", zap.String("service_name", serviceName))
	}

	if agg != nil {
		engine.GET("/healthz", agg.Handler())
	}

	var internal []string
	if o.admin != nil {
		internal = append(internal, o.admin.PathPrefix+"/")
	}
	if o.swagger.IsEnabled() {
		sc := o.swagger.GetConfig()
		internal = append(internal, strings.TrimSuffix(sc.UIPath, "*any"), sc.SpecPath)
	}

	if lm != nil && lm.IsEnabled() {
		rlCfg := middleware.DefaultRateLimiterConfig(lm)
		rlCfg.Wait = cfg.Wait
		rlCfg.SkipPaths = cfg.SkipPaths
		rlCfg.Logger = log
		rlCfg.KeyFunc = keyFunc(cfg)
		if len(internal) > 0 {
			rlCfg.SkipFunc = skipPrefixes(internal)
		}
		engine.Use(middleware.RateLimiterWithConfig(rlCfg))
		log.Debug("✅ rate limiter middleware enabled",
			zap.String("key_func", cfg.KeyFunc),
			zap.Bool("wait", cfg.Wait))
	}

	if o.admin != nil && lm != nil {
		group := engine.Group(o.admin.PathPrefix, httpx.ErrorLoggingMiddleware(o.admin.ErrorLogging))
		if o.auth != nil {
			group.Use(o.auth.Middleware())
		}
		admin.NewHandler(lm, logger.GetLogger("admin")).Register(group)
		engine.NoRoute(httpx.NoRouteHandler())
		engine.NoMethod(httpx.NoMethodHandler())
		log.Debug("✅ admin api mounted",
			zap.String("prefix", o.admin.PathPrefix),
			zap.Bool("auth", o.auth != nil))
	}
	o.swagger.RegisterRoutes(engine)

	return &HTTPServer{
		engine: engine,
		logger: log,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

func skipPrefixes(prefixes []string) func(*gin.Context) bool {
	return func(c *gin.Context) bool {
		path := c.Request.URL.Path
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
}

func keyFunc(cfg HTTPConfig) func(*gin.Context) string {
	switch cfg.KeyFunc {
	case KeyByIP:
		return middleware.RateLimiterKeyByIP
	case KeyByPathIP:
		return middleware.RateLimiterKeyByPathAndIP
	case KeyByAPIKey:
		return middleware.RateLimiterKeyByAPIKey(cfg.APIKey)
	case KeyByJWT:
		return middleware.RateLimiterKeyByJWT(middleware.JWTKeyConfig{
			Secret:  []byte(cfg.JWT.Secret),
			Claim:   cfg.JWT.Claim,
			Methods: cfg.JWT.Methods,
		})
	default:
		return middleware.RateLimiterKeyByPath
	}
}

// Engine 注册业务路由
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start 监听端口后在后台服务
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.logger.Info("🚀 HTTP server started", zap.String("addr", s.addr.String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server exited", zap.Error(err))
		}
	}()
	return nil
}

// Addr Start 之后的实际监听地址
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

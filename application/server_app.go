package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-bucket/auth"
	"github.com/KOMKZ/go-yogan-bucket/di"
	"github.com/KOMKZ/go-yogan-bucket/health"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/swagger"
	"github.com/KOMKZ/go-yogan-bucket/telemetry"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ServerApplication HTTP / gRPC 限流网关
type ServerApplication struct {
	*BaseApplication

	config ServerConfig
	http   *HTTPServer
	grpc   *GRPCServer

	onRoutes func(*HTTPServer)
	onGRPC   func(*GRPCServer)
}

// NewServer 读取 server 配置段
func NewServer(opts di.ConfigOptions) (*ServerApplication, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}

	cfg := DefaultServerConfig()
	if err := base.ConfigLoader().UnmarshalKey("server", &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrInvalidServerConfig); err != nil {
		return nil, err
	}

	return &ServerApplication{BaseApplication: base, config: cfg}, nil
}

// OnRoutes 注册业务 HTTP 路由
func (a *ServerApplication) OnRoutes(fn func(*HTTPServer)) *ServerApplication {
	a.onRoutes = fn
	return a
}

// OnGRPC 注册业务 gRPC 服务
func (a *ServerApplication) OnGRPC(fn func(*GRPCServer)) *ServerApplication {
	a.onGRPC = fn
	return a
}

func (a *ServerApplication) Config() ServerConfig {
	return a.config
}

// Start Setup 之后启动已开启的服务，不阻塞
func (a *ServerApplication) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	lm, err := a.LimiterManager()
	if err != nil {
		return err
	}
	agg, err := do.Invoke[*health.Aggregator](a.Injector())
	if err != nil {
		return err
	}

	tm, err := do.Invoke[*telemetry.Manager](a.Injector())
	if err != nil {
		return err
	}

	if a.config.HTTP.Enabled {
		sm, err := do.Invoke[*swagger.Manager](a.Injector())
		if err != nil {
			return err
		}
		opts := []HTTPOption{WithAdmin(a.config.Admin), WithSwagger(sm)}
		if a.config.Admin.Enabled && a.config.Admin.Auth.Enabled {
			authn, err := auth.NewAuthenticator(a.config.Admin.Auth, logger.GetLogger("auth"))
			if err != nil {
				return err
			}
			opts = append(opts, WithAdminAuth(authn))
		}
		if tm.IsEnabled() {
			opts = append(opts, WithTracing(tm.GetConfig().ServiceName, tm.TracerProvider()))
		}
		a.http = NewHTTPServer(a.config.HTTP, lm, agg, a.Logger(), opts...)
		if a.onRoutes != nil {
			a.onRoutes(a.http)
		}
		if err := a.http.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}
	if a.config.GRPC.Enabled {
		var opts []grpc.ServerOption
		if tm.IsEnabled() {
			opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler(
				otelgrpc.WithTracerProvider(tm.TracerProvider()))))
		}
		a.grpc = NewGRPCServer(a.config.GRPC, lm, a.Logger(), opts...)
		if a.onGRPC != nil {
			a.onGRPC(a.grpc)
		}
		if err := a.grpc.Start(); err != nil {
			return fmt.Errorf("start grpc server: %w", err)
		}
	}

	a.setState(StateRunning)
	return nil
}

// Run 启动后阻塞到收到关闭信号
func (a *ServerApplication) Run() error {
	if err := a.Start(); err != nil {
		_ = a.Stop()
		return err
	}
	a.WaitShutdown()
	return a.Stop()
}

// Stop 先停服务再关闭组件
func (a *ServerApplication) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			a.Logger().ErrorCtx(ctx, "http server shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.grpc != nil {
		if err := a.grpc.Shutdown(ctx); err != nil {
			a.Logger().ErrorCtx(ctx, "grpc server shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.Shutdown(a.config.ShutdownTimeout))
	return errors.Join(errs...)
}

func (a *ServerApplication) HTTPServer() *HTTPServer {
	return a.http
}

func (a *ServerApplication) GRPCServer() *GRPCServer {
	return a.grpc
}

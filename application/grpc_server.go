package application

import (
	"context"
	"net"

	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer 挂载限流拦截器和标准健康检查服务
type GRPCServer struct {
	server *grpc.Server
	health *grpchealth.Server
	logger *logger.CtxZapLogger
	cfg    GRPCConfig
	addr   net.Addr
}

func NewGRPCServer(cfg GRPCConfig, lm *limiter.Manager, log *logger.CtxZapLogger, opts ...grpc.ServerOption) *GRPCServer {
	if log == nil {
		log = logger.GetLogger("grpc")
	}
	if lm != nil {
		opts = append(opts, grpc.ChainUnaryInterceptor(middleware.UnaryServerRateLimiter(lm, log)))
	}
	server := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)

	return &GRPCServer{server: server, health: hs, logger: log, cfg: cfg}
}

// Server 注册业务服务，需在 Start 之前
func (s *GRPCServer) Server() *grpc.Server {
	return s.server
}

func (s *GRPCServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info("🚀 gRPC server started", zap.String("addr", s.addr.String()))

	go func() {
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("gRPC server exited", zap.Error(err))
		}
	}()
	return nil
}

func (s *GRPCServer) Addr() net.Addr {
	return s.addr
}

// Shutdown 超时后强制停止
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}

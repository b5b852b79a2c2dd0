package middleware

import (
	"context"
	"errors"

	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCKeyFunc 根据方法生成资源键
type GRPCKeyFunc func(ctx context.Context, fullMethod string) string

// UnaryServerRateLimiter 服务端限流拦截器
//
// 资源名称默认为完整方法名（如 "/auth.AuthService/Login"），
// 方法级未配置时使用 default 配置，default 也未配置时直接放行。
// 限流器内部错误时记录日志并放行。
func UnaryServerRateLimiter(l limiter.Limiter, log *logger.CtxZapLogger, keyFunc ...GRPCKeyFunc) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logger.GetLogger("limiter")
	}
	key := func(_ context.Context, fullMethod string) string { return fullMethod }
	if len(keyFunc) > 0 && keyFunc[0] != nil {
		key = keyFunc[0]
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler) (interface{}, error) {
		if l == nil || !l.IsEnabled() {
			return handler(ctx, req)
		}

		resource := key(ctx, info.FullMethod)
		allowed, err := l.Allow(ctx, resource)
		if err != nil {
			if errors.Is(err, limiter.ErrClosed) {
				return nil, status.Error(codes.Unavailable, "rate limiter closed")
			}
			log.WarnCtx(ctx, "⚠️  rate limit check failed, allowing request",
				zap.String("method", info.FullMethod),
				zap.String("resource", resource),
				zap.Error(err))
			return handler(ctx, req)
		}

		if !allowed {
			log.DebugCtx(ctx, "🚫 request rate limited",
				zap.String("method", info.FullMethod),
				zap.String("resource", resource))
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}

		return handler(ctx, req)
	}
}

// Package auth 管理接口的 HTTP Basic 认证，密码以 bcrypt 哈希保存
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserKey 认证通过后写入 gin.Context 的用户名
const ContextUserKey = "admin_user"

// Authenticator 校验用户名和密码
type Authenticator struct {
	config    Config
	users     map[string]string
	dummyHash string
	passwords *PasswordService
	guard     *AttemptGuard
	logger    *logger.CtxZapLogger
}

// Option 可选项
type Option func(*authOptions)

type authOptions struct {
	meter bucket.TimeMeter
}

// WithTimeMeter 失败计数使用的时钟
func WithTimeMeter(meter bucket.TimeMeter) Option {
	return func(o *authOptions) { o.meter = meter }
}

func NewAuthenticator(cfg Config, log *logger.CtxZapLogger, opts ...Option) (*Authenticator, error) {
	if log == nil {
		log = logger.GetLogger("auth")
	}
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrInvalidConfig); err != nil {
		return nil, err
	}

	a := &Authenticator{
		config:    cfg,
		users:     make(map[string]string, len(cfg.Users)),
		passwords: NewPasswordService(cfg.Policy, cfg.BcryptCost),
		logger:    log,
	}
	usernames := make([]string, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		a.users[u.Username] = u.PasswordHash
		usernames = append(usernames, u.Username)
	}

	// 未知用户名也走一次 bcrypt，耗时与已知用户一致
	dummy, err := a.passwords.HashPassword("bucket-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	a.dummyHash = dummy

	if cfg.LoginAttempt.Enabled {
		a.guard, err = NewAttemptGuard(cfg.LoginAttempt, usernames, o.meter)
		if err != nil {
			return nil, ErrInvalidConfig.Wrap(err)
		}
	}
	return a, nil
}

// Authenticate 失败返回 ErrUnauthorized 或 ErrTooManyAttempts
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	if a.guard != nil && a.guard.Locked(ctx, username) {
		a.logger.WarnCtx(ctx, "⚠️  admin login locked", zap.String("username", username))
		return ErrTooManyAttempts.WithData("username", username)
	}

	hash, known := a.users[username]
	if !known {
		hash = a.dummyHash
	}
	if a.passwords.CheckPassword(password, hash) && known {
		if a.guard != nil {
			a.guard.Reset(username)
		}
		return nil
	}

	if a.guard != nil {
		a.guard.Fail(ctx, username)
	}
	a.logger.WarnCtx(ctx, "⚠️  admin authentication failed",
		zap.String("username", username),
		zap.Bool("known_user", known))
	return ErrUnauthorized
}

// Middleware gin 中间件，失败时返回统一错误响应
func (a *Authenticator) Middleware() gin.HandlerFunc {
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", a.config.Realm)
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", challenge)
			httpx.HandleError(c, ErrUnauthorized)
			return
		}
		if err := a.Authenticate(c.Request.Context(), username, password); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				c.Header("WWW-Authenticate", challenge)
			}
			httpx.HandleError(c, err)
			return
		}
		c.Set(ContextUserKey, username)
		c.Next()
	}
}

// Guard 未启用失败次数限制时为 nil
func (a *Authenticator) Guard() *AttemptGuard {
	return a.guard
}

func (a *Authenticator) Passwords() *PasswordService {
	return a.passwords
}

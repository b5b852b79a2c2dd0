package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTKeyConfig 按 JWT 声明限流
type JWTKeyConfig struct {
	// Secret HMAC 密钥
	Secret []byte

	// Claim 用作资源名的声明，默认 sub
	Claim string

	// Methods 允许的签名算法，默认 HS256/HS384/HS512
	Methods []string

	// Fallback token 缺失或无效时使用，默认按 IP
	Fallback func(*gin.Context) string
}

// RateLimiterKeyByJWT 从 Authorization: Bearer 中解析 token，按声明值限流
//
//	cfg.KeyFunc = middleware.RateLimiterKeyByJWT(middleware.JWTKeyConfig{Secret: secret, Claim: "tenant_id"})
func RateLimiterKeyByJWT(cfg JWTKeyConfig) func(*gin.Context) string {
	if cfg.Claim == "" {
		cfg.Claim = "sub"
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}
	}
	if cfg.Fallback == nil {
		cfg.Fallback = RateLimiterKeyByIP
	}
	parser := jwt.NewParser(jwt.WithValidMethods(cfg.Methods))
	keyFunc := func(*jwt.Token) (interface{}, error) { return cfg.Secret, nil }

	return func(c *gin.Context) string {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			return cfg.Fallback(c)
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			return cfg.Fallback(c)
		}
		value, ok := claims[cfg.Claim]
		if !ok || value == nil || value == "" {
			return cfg.Fallback(c)
		}
		return fmt.Sprintf("%s:%v", cfg.Claim, value)
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

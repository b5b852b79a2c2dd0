package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("bucket-secret")

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func jwtContext(authorization string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	c.Request.RemoteAddr = "10.0.0.9:1234"
	if authorization != "" {
		c.Request.Header.Set("Authorization", authorization)
	}
	return c
}

func TestRateLimiterKeyByJWT(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       "user-42",
		"tenant_id": "acme",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	expired := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret)
	forged := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}, []byte("other"))
	noSubject := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"tenant_id": "acme"}, testSecret)

	tests := []struct {
		name   string
		cfg    JWTKeyConfig
		header string
		want   string
	}{
		{"subject", JWTKeyConfig{Secret: testSecret}, "Bearer " + valid, "sub:user-42"},
		{"lowercase scheme", JWTKeyConfig{Secret: testSecret}, "bearer " + valid, "sub:user-42"},
		{"custom claim", JWTKeyConfig{Secret: testSecret, Claim: "tenant_id"}, "Bearer " + valid, "tenant_id:acme"},
		{"missing header", JWTKeyConfig{Secret: testSecret}, "", "ip:10.0.0.9"},
		{"basic auth", JWTKeyConfig{Secret: testSecret}, "Basic dXNlcjpwYXNz", "ip:10.0.0.9"},
		{"expired", JWTKeyConfig{Secret: testSecret}, "Bearer " + expired, "ip:10.0.0.9"},
		{"bad signature", JWTKeyConfig{Secret: testSecret}, "Bearer " + forged, "ip:10.0.0.9"},
		{"claim absent", JWTKeyConfig{Secret: testSecret}, "Bearer " + noSubject, "ip:10.0.0.9"},
		{"method not allowed", JWTKeyConfig{Secret: testSecret, Methods: []string{"HS512"}}, "Bearer " + valid, "ip:10.0.0.9"},
		{
			"custom fallback",
			JWTKeyConfig{Secret: testSecret, Fallback: func(*gin.Context) string { return "anonymous" }},
			"",
			"anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyFunc := RateLimiterKeyByJWT(tt.cfg)
			assert.Equal(t, tt.want, keyFunc(jwtContext(tt.header)))
		})
	}
}

func TestRateLimiter_KeyByJWT(t *testing.T) {
	router, manager, _ := setupRateLimiterTest(t)

	cfg := DefaultRateLimiterConfig(manager)
	cfg.KeyFunc = RateLimiterKeyByJWT(JWTKeyConfig{Secret: testSecret})
	router.Use(RateLimiterWithConfig(cfg))
	router.GET("/api/test", ok)

	alice := "Bearer " + signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}, testSecret)
	bob := "Bearer " + signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"}, testSecret)
	as := func(token string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Authorization", token) }
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", as(alice)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "/api/test", as(alice)).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/api/test", as(bob)).Code)

	assert.Equal(t, int64(1), manager.GetMetrics("sub:bob").Allowed)
}

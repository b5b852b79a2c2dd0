package application

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/auth"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/swagger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"
)

// 默认每小时 1 个令牌
func strictLimiter(t *testing.T) *limiter.Manager {
	t.Helper()
	lm, err := limiter.NewManager(limiter.Config{
		Enabled:   true,
		StoreType: limiter.StoreTypeMemory,
		Default: limiter.ResourceConfig{
			Bandwidths: []limiter.BandwidthConfig{{Capacity: 1, Period: time.Hour}},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = lm.Close() })
	return lm
}

func testHTTPConfig() HTTPConfig {
	cfg := DefaultServerConfig().HTTP
	cfg.Mode = gin.TestMode
	return cfg
}

func get(s *HTTPServer, path string, header ...string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w.Code
}

func TestHTTPServer_AdminSkipsRateLimit(t *testing.T) {
	lm := strictLimiter(t)
	admin := DefaultServerConfig().Admin
	admin.Enabled = true
	log, _ := logger.NewObservedLogger("http")

	s := NewHTTPServer(testHTTPConfig(), lm, nil, log, WithAdmin(admin))
	s.Engine().GET("/api/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(s, "/api/orders"))
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/api/orders"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(s, "/admin/v1/config"))
	}
	// 前缀必须完整匹配一段路径
	assert.Equal(t, http.StatusNotFound, get(s, "/admin/v10"))
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/admin/v10"))
}

func TestHTTPServer_AdminDisabled(t *testing.T) {
	s := NewHTTPServer(testHTTPConfig(), strictLimiter(t), nil, nil, WithAdmin(AdminConfig{PathPrefix: "/admin/v1"}))
	assert.Equal(t, http.StatusNotFound, get(s, "/admin/v1/config"))
}

func TestHTTPServer_Swagger(t *testing.T) {
	sm, err := swagger.NewManager(swagger.Config{Enabled: true}, nil)
	require.NoError(t, err)

	s := NewHTTPServer(testHTTPConfig(), strictLimiter(t), nil, nil, WithSwagger(sm))
	assert.Equal(t, http.StatusOK, get(s, "/openapi.json"))
	assert.Equal(t, http.StatusOK, get(s, "/openapi.json"))
	assert.Equal(t, http.StatusOK, get(s, "/swagger/index.html"))
}

func TestHTTPServer_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	s := NewHTTPServer(testHTTPConfig(), strictLimiter(t), nil, nil, WithTracing("bucket-test", tp))
	s.Engine().GET("/api/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(s, "/api/orders"))
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/api/orders"))

	// 被拒绝的请求同样有 span
	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/orders", spans[0].Name())
}

func TestHTTPServer_KeyByJWT(t *testing.T) {
	cfg := testHTTPConfig()
	cfg.KeyFunc = KeyByJWT
	cfg.JWT = JWTConfig{Secret: "s3cret", Claim: "sub"}

	s := NewHTTPServer(cfg, strictLimiter(t), nil, nil)
	s.Engine().GET("/api/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	sign := func(sub string) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		return "Bearer " + raw
	}

	assert.Equal(t, http.StatusOK, get(s, "/api/orders", "Authorization", sign("alice")))
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/api/orders", "Authorization", sign("alice")))
	assert.Equal(t, http.StatusOK, get(s, "/api/orders", "Authorization", sign("bob")))
}

func TestSkipPrefixes(t *testing.T) {
	skip := skipPrefixes([]string{"/admin/v1/", "/openapi.json"})
	for path, want := range map[string]bool{
		"/admin/v1/config": true,
		"/openapi.json":    true,
		"/admin/v1":        false,
		"/api/orders":      false,
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, path, bytes.NewReader(nil))
		assert.Equal(t, want, skip(c), path)
	}
}

func TestHTTPServer_AdminAuth(t *testing.T) {
	lm := strictLimiter(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("refill-rate-42"), bcrypt.MinCost)
	require.NoError(t, err)

	admin := DefaultServerConfig().Admin
	admin.Enabled = true
	admin.Auth.Enabled = true
	admin.Auth.BcryptCost = bcrypt.MinCost
	admin.Auth.Users = []auth.UserConfig{{Username: "ops", PasswordHash: string(hash)}}
	authn, err := auth.NewAuthenticator(admin.Auth, nil)
	require.NoError(t, err)

	s := NewHTTPServer(testHTTPConfig(), lm, nil, nil, WithAdmin(admin), WithAdminAuth(authn))

	assert.Equal(t, http.StatusUnauthorized, get(s, "/admin/v1/config"))

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/config", nil)
	req.SetBasicAuth("ops", "refill-rate-42")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

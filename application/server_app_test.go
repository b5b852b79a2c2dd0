package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T) *ServerApplication {
	t.Helper()
	app, err := NewServer(testOptions(t))
	require.NoError(t, err)
	app.OnRoutes(func(s *HTTPServer) {
		s.Engine().GET("/api/login", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
	})
	require.NoError(t, app.Start())
	t.Cleanup(func() { _ = app.Stop() })
	return app
}

func TestServerApplication_HTTPRateLimit(t *testing.T) {
	app := startServer(t)
	assert.Equal(t, StateRunning, app.GetState())
	base := fmt.Sprintf("http://%s", app.HTTPServer().Addr())

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := http.Get(base + "/api/login")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)

	// 健康检查不受限流
	for i := 0; i < 5; i++ {
		resp, err := http.Get(base + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestServerApplication_GRPCRateLimit(t *testing.T) {
	app := startServer(t)

	conn, err := grpc.NewClient(app.GRPCServer().Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
		require.NoError(t, err)
		assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
	}
	_, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestServerApplication_Stop(t *testing.T) {
	app, err := NewServer(testOptions(t))
	require.NoError(t, err)
	require.NoError(t, app.Start())
	addr := app.HTTPServer().Addr().String()

	require.NoError(t, app.Stop())
	assert.Equal(t, StateStopped, app.GetState())

	_, err = http.Get("http://" + addr + "/healthz")
	assert.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	cfg := ServerConfig{}
	cfg.ApplyDefaults()
	def := DefaultServerConfig()
	assert.Equal(t, def.HTTP.Addr, cfg.HTTP.Addr)
	assert.Equal(t, KeyByPath, cfg.HTTP.KeyFunc)
	assert.Equal(t, def.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())

	cfg.HTTP.KeyFunc = "cookie"
	cfg.HTTP.Mode = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.key_func")
	assert.Contains(t, err.Error(), "http.mode")
}

func TestKeyFunc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got []string
	for _, kind := range []string{KeyByPath, KeyByIP, KeyByPathIP, KeyByAPIKey} {
		fn := keyFunc(HTTPConfig{KeyFunc: kind, APIKey: "X-API-Key"})
		r.GET("/"+kind, func(c *gin.Context) { got = append(got, fn(c)) })
	}

	for _, kind := range []string{KeyByPath, KeyByIP, KeyByPathIP, KeyByAPIKey} {
		req, _ := http.NewRequest(http.MethodGet, "/"+kind, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-API-Key", "secret")
		r.ServeHTTP(newRecorder(), req)
	}
	assert.Equal(t, []string{
		"GET:/path",
		"ip:10.0.0.1",
		"GET:/path_ip:10.0.0.1",
		"apikey:secret",
	}, got)
}

func TestServerApplication_AdminAPI(t *testing.T) {
	app := startServer(t)
	base := fmt.Sprintf("http://%s", app.HTTPServer().Addr())

	acquire := func() bool {
		resp, err := http.Post(base+"/admin/v1/acquire", "application/json",
			strings.NewReader(`{"resource":"GET:/api/login"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Granted bool `json:"granted"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Data.Granted
	}

	// 管理接口和中间件共用同一组 bucket
	assert.Equal(t, []bool{true, true, true, false}, []bool{acquire(), acquire(), acquire(), acquire()})
	resp, err := http.Get(base + "/api/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = http.Get(base + "/openapi.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/admin/v1/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/KOMKZ/go-yogan-bucket/docs"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()

	assert.Equal(t, "/swagger/*any", cfg.UIPath)
	assert.Equal(t, "/openapi.json", cfg.SpecPath)
	assert.Equal(t, "list", cfg.DocExpansion)
	assert.Equal(t, "swagger", cfg.InstanceName)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewManager(Config{Enabled: true, UIPath: "/docs", DocExpansion: "all"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, []string{"doc_expansion", "ui_path"}, validator.Fields(err))

	// 未启用时不校验
	_, err = NewManager(Config{UIPath: "/docs"}, nil)
	assert.NoError(t, err)
}

func TestManager_RegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := logger.NewObservedLogger("swagger")
	m, err := NewManager(Config{Enabled: true}, log)
	require.NoError(t, err)

	engine := gin.New()
	m.RegisterRoutes(engine)

	w := serve(engine, "/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Swagger  string                 `json:"swagger"`
		BasePath string                 `json:"basePath"`
		Paths    map[string]interface{} `json:"paths"`
		Security map[string]interface{} `json:"securityDefinitions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "/admin/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/acquire")
	assert.Contains(t, doc.Paths, "/resources/metrics")
	assert.Contains(t, doc.Security, "BasicAuth")

	w = serve(engine, "/swagger/index.html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

func TestManager_Disabled(t *testing.T) {
	m, err := NewManager(Config{}, nil)
	require.NoError(t, err)

	engine := gin.New()
	m.RegisterRoutes(engine)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/openapi.json").Code)

	var nilManager *Manager
	assert.False(t, nilManager.IsEnabled())
	assert.NoError(t, m.Shutdown())
}

func TestManager_UnknownInstance(t *testing.T) {
	log, logs := logger.NewObservedLogger("swagger")
	m, err := NewManager(Config{Enabled: true, InstanceName: "missing"}, log)
	require.NoError(t, err)

	engine := gin.New()
	m.RegisterRoutes(engine)
	assert.Equal(t, 1, logs.FilterMessage("⚠️  swagger doc not registered, import the generated docs package").Len())

	w := serve(engine, "/openapi.json")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "swagger document not found")
}

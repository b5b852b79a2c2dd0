// Package swagger 挂载管理接口的 Swagger UI 和 OpenAPI 文档
package swagger

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
	"go.uber.org/zap"
)

// Manager 文档需由 swag init 生成的 docs 包注册
type Manager struct {
	config Config
	logger *logger.CtxZapLogger
}

func NewManager(cfg Config, log *logger.CtxZapLogger) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrInvalidConfig); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger("swagger")
	}
	return &Manager{config: cfg, logger: log}, nil
}

func (m *Manager) IsEnabled() bool {
	return m != nil && m.config.Enabled
}

func (m *Manager) GetConfig() Config {
	return m.config
}

// RegisterRoutes 挂载 UI 和 spec 路由，未启用时不做任何事
func (m *Manager) RegisterRoutes(r gin.IRoutes) {
	if !m.IsEnabled() {
		return
	}
	if swag.GetSwagger(m.config.InstanceName) == nil {
		m.logger.Warn("⚠️  swagger doc not registered, import the generated docs package",
			zap.String("instance", m.config.InstanceName))
	}

	r.GET(m.config.UIPath, ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.InstanceName(m.config.InstanceName),
		ginSwagger.DeepLinking(m.config.DeepLinking),
		ginSwagger.PersistAuthorization(m.config.PersistAuthorization),
		ginSwagger.DocExpansion(m.config.DocExpansion),
	))
	if m.config.SpecPath != "" {
		r.GET(m.config.SpecPath, m.serveSpec)
	}

	m.logger.Debug("✅ swagger routes registered",
		zap.String("ui_path", m.config.UIPath),
		zap.String("spec_path", m.config.SpecPath))
}

func (m *Manager) serveSpec(c *gin.Context) {
	doc, err := swag.ReadDoc(m.config.InstanceName)
	if err != nil {
		httpx.HandleError(c, ErrDocNotFound.Wrap(err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
}

// Shutdown do 容器关闭时调用
func (m *Manager) Shutdown() error {
	return nil
}

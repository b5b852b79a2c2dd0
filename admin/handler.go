// Package admin 限流服务的管理接口：远程申请令牌、查询指标、重置 bucket
package admin

import (
	"errors"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/httpx"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 管理接口
type Handler struct {
	limiter *limiter.Manager
	logger  *logger.CtxZapLogger
}

func NewHandler(lm *limiter.Manager, log *logger.CtxZapLogger) *Handler {
	if log == nil {
		log = logger.GetLogger("admin")
	}
	return &Handler{limiter: lm, logger: log}
}

// Register 挂载路由
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/acquire", httpx.Wrap(h.Acquire))
	rg.GET("/resources/metrics", httpx.Wrap(h.Metrics))
	rg.GET("/resources/available", httpx.Wrap(h.Available))
	rg.POST("/resources/reset", httpx.Wrap(h.Reset))
	rg.GET("/config", httpx.Wrap(h.Config))
	rg.GET("/errors", httpx.Wrap(h.Errors))
}

// Acquire godoc
// @Summary     申请令牌
// @Description 供不在同一进程内的调用方使用；granted=false 表示被限流
// @Tags        limiter
// @Accept      json
// @Produce     json
// @Param       request body     AcquireRequest true "申请参数"
// @Success     200     {object} httpx.Response{data=AcquireResponse}
// @Failure     400     {object} httpx.Response
// @Router      /acquire [post]
func (h *Handler) Acquire(c *gin.Context, req *AcquireRequest) (*AcquireResponse, error) {
	ctx := c.Request.Context()
	resp := &AcquireResponse{Resource: req.Resource}

	if req.Wait {
		err := h.limiter.WaitN(ctx, req.Resource, req.Tokens)
		switch {
		case err == nil:
			resp.Granted = true
		case errors.Is(err, limiter.ErrWaitTimeout):
		default:
			return nil, err
		}
	} else {
		granted, err := h.limiter.AllowN(ctx, req.Resource, req.Tokens)
		if err != nil {
			return nil, err
		}
		resp.Granted = granted
	}

	if available, err := h.limiter.Available(ctx, req.Resource); err == nil {
		resp.Available = available
	}
	h.logger.DebugCtx(ctx, "remote acquire",
		zap.String("resource", req.Resource),
		zap.Int64("tokens", req.Tokens),
		zap.Bool("granted", resp.Granted))
	return resp, nil
}

// Metrics godoc
// @Summary  资源指标快照
// @Tags     limiter
// @Produce  json
// @Param    resource query    string true "资源名"
// @Success  200      {object} httpx.Response{data=limiter.MetricsSnapshot}
// @Router   /resources/metrics [get]
func (h *Handler) Metrics(_ *gin.Context, req *ResourceQuery) (*limiter.MetricsSnapshot, error) {
	return h.limiter.GetMetrics(req.Resource), nil
}

// Available godoc
// @Summary  当前可用令牌
// @Tags     limiter
// @Produce  json
// @Param    resource query    string true "资源名"
// @Success  200      {object} httpx.Response{data=AvailableResponse}
// @Failure  404      {object} httpx.Response
// @Router   /resources/available [get]
func (h *Handler) Available(c *gin.Context, req *ResourceQuery) (*AvailableResponse, error) {
	available, err := h.limiter.Available(c.Request.Context(), req.Resource)
	if err != nil {
		return nil, err
	}
	return &AvailableResponse{Resource: req.Resource, Available: available}, nil
}

// Reset godoc
// @Summary     重置 bucket
// @Description 共享存储时影响所有实例
// @Tags        limiter
// @Accept      json
// @Produce     json
// @Param       request body     ResourceQuery true "资源"
// @Success     200     {object} httpx.Response{data=ResetResponse}
// @Router      /resources/reset [post]
func (h *Handler) Reset(c *gin.Context, req *ResourceQuery) (*ResetResponse, error) {
	ctx := c.Request.Context()
	if err := h.limiter.Reset(ctx, req.Resource); err != nil {
		return nil, err
	}
	h.logger.InfoCtx(ctx, "🔄 bucket reset", zap.String("resource", req.Resource))
	return &ResetResponse{Resource: req.Resource, Reset: true}, nil
}

// Config godoc
// @Summary  当前限流配置
// @Tags     limiter
// @Produce  json
// @Success  200 {object} httpx.Response{data=ConfigResponse}
// @Router   /config [get]
func (h *Handler) Config(_ *gin.Context, _ *struct{}) (*ConfigResponse, error) {
	cfg := h.limiter.GetConfig()
	resp := &ConfigResponse{
		Enabled:   cfg.Enabled,
		StoreType: cfg.StoreType,
		Default:   newResourceView(cfg.Default),
		Resources: make(map[string]ResourceView, len(cfg.Resources)),
	}
	for name, rc := range cfg.Resources {
		resp.Resources[name] = newResourceView(rc)
	}
	return resp, nil
}

// Errors godoc
// @Summary  已注册的错误码
// @Tags     meta
// @Produce  json
// @Success  200 {object} httpx.Response{data=ErrorsResponse}
// @Router   /errors [get]
func (h *Handler) Errors(_ *gin.Context, _ *struct{}) (*ErrorsResponse, error) {
	all := errcode.All()
	resp := &ErrorsResponse{Errors: make([]ErrorCode, 0, len(all))}
	for _, e := range all {
		resp.Errors = append(resp.Errors, ErrorCode{
			Code:       e.Code(),
			Module:     e.Module(),
			Key:        e.MsgKey(),
			Message:    e.Message(),
			HTTPStatus: e.HTTPStatus(),
		})
	}
	return resp, nil
}

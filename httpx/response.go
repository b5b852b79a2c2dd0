package httpx

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应格式，code=0 表示成功
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

// AbortJson 按 LayeredError 的状态码中断请求
func AbortJson(c *gin.Context, err *errcode.LayeredError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), Response{
		Code: err.Code(),
		Msg:  err.Message(),
		Data: err.Data(),
	})
}

// NoRouteHandler engine.NoRoute 使用
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "路由不存在: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler engine.NoMethod 使用
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "方法不允许: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError LayeredError 按自身状态码和错误码返回，其余错误统一 500
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var le *errcode.LayeredError
	if !errors.As(err, &le) {
		le = ErrInternal.Wrap(err)
	}

	cfg := getErrorLoggingConfig(c)
	if cfg.Enable && !cfg.IgnoreStatusMap[le.HTTPStatus()] {
		logError(c, cfg, le, err)
	}
	AbortJson(c, le)
}

func logError(c *gin.Context, cfg errorLoggingConfigInternal, le *errcode.LayeredError, err error) {
	ctx := c.Request.Context()
	fields := []zap.Field{
		zap.Int("error_code", le.Code()),
		zap.String("error_msg", le.Message()),
		zap.String("path", c.Request.URL.Path),
	}
	if cfg.FullErrorChain {
		fields = append(fields, zap.Error(err))
	}

	log := logger.GetLogger("httpx")
	switch cfg.LogLevel {
	case "warn":
		log.WarnCtx(ctx, "request failed", fields...)
	case "info":
		log.InfoCtx(ctx, "request failed", fields...)
	default:
		log.ErrorCtx(ctx, "request failed", fields...)
	}
}

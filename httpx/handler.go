package httpx

import (
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc 业务 handler，与 HTTP 细节解耦
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap 解析请求、执行校验（实现 validator.Validatable 时）、调用 handler 并输出响应
func Wrap[Req any, Resp any](handler HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := Parse(c, &req); err != nil {
			HandleError(c, err)
			return
		}

		if v, ok := any(&req).(validator.Validatable); ok {
			if err := validator.Validate(v, ErrValidation); err != nil {
				HandleError(c, err)
				return
			}
		}

		resp, err := handler(c, &req)
		if err != nil {
			HandleError(c, err)
			return
		}
		OkJson(c, resp)
	}
}

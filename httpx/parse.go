package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse 依次绑定 uri、query 和 JSON body
// uri/query 缺少对应 tag 时忽略绑定错误，body 解析失败返回错误
func Parse(c *gin.Context, req interface{}) error {
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return ErrBadRequest.Wrap(err).WithMsg(err.Error())
		}
	}
	return nil
}

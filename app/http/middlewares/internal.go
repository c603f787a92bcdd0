package middlewares

import (
	"crypto/subtle"

	"zufang/pkg/config"
	"zufang/pkg/response"

	"github.com/gin-gonic/gin"
)

// InternalOnly 服务间内部接口鉴权
// 凭共享的 X-Internal-Api-Key 互信，不走用户令牌
func InternalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := config.GetString("services.internal_key")
		provided := c.GetHeader("X-Internal-Api-Key")

		if expected == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			response.Abort403(c, "内部接口拒绝访问")
			return
		}
		c.Next()
	}
}

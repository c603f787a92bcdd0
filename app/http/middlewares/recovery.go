package middlewares

import (
	"net"
	"net/http/httputil"
	"os"
	"strings"

	"zufang/pkg/app"
	"zufang/pkg/logger"
	"zufang/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 从 panic 中恢复并记录错误日志
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// 客户端中断连接不算服务端错误
				var brokenPipe bool
				if ne, ok := err.(*net.OpError); ok {
					if se, ok := ne.Err.(*os.SyscallError); ok {
						errStr := strings.ToLower(se.Error())
						if strings.Contains(errStr, "broken pipe") ||
							strings.Contains(errStr, "connection reset by peer") {
							brokenPipe = true
						}
					}
				}

				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				logger.Error("recovery from panic",
					zap.Time("time", app.TimenowInTimezone()),
					zap.Any("error", err),
					zap.String("request", string(httpRequest)),
					zap.Stack("stacktrace"),
				)

				if brokenPipe {
					c.Error(err.(error))
					c.Abort()
					return
				}

				response.Abort500(c, "服务器内部错误，请稍后再试")
			}
		}()
		c.Next()
	}
}

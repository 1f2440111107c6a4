package middleware

import (
	"github.com/gin-gonic/gin"

	"helper/internal/pkg/id"
)

// RequestID 请求ID中间件
// 透传 X-Request-ID，没有就生成一个，写回响应头并放进 gin context 供日志用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

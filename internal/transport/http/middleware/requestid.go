// Package middleware file: internal/transport/http/middleware/requestid.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 是请求追踪 ID 使用的头字段名。
const RequestIDHeader = "X-Request-ID"

// RequestID 给每个请求附加一个追踪 ID。
// 如果客户端已经带了 X-Request-ID 就沿用，方便跨服务串联日志。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 是透传请求 ID 的标准头。
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey 是请求 ID 在 Gin 上下文中的键。
	RequestIDKey = "request_id"
)

// RequestID 确保每个请求都带有请求 ID：
// 读取 X-Request-ID，缺失时生成新的 UUID，并写回响应头。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 先执行请求链中的后续处理器
		c.Next()

		// 处理器中通过 c.Error(err) 附加的错误都会被收集到 c.Errors
		if len(c.Errors) == 0 {
			return
		}

		// 只处理最后一个错误，它通常是根本原因
		lastError := c.Errors.Last()
		err := lastError.Err

		// 参数绑定或验证错误
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
			return
		}

		// 根据业务错误类型返回不同的HTTP状态码
		switch {
		case errors.Is(err, port.ErrPathNotFound), errors.Is(err, port.ErrFileNotFound),
			errors.Is(err, port.ErrTableNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrUnknownColumn), errors.Is(err, port.ErrNoPrimaryKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrAssistantDown):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ollama服务不可用，请确认其已启动"})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}

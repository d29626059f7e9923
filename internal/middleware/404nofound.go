package middleware

import (
	"github.com/chunkvault/chunk-upload-service/pkg/app"
	"github.com/chunkvault/chunk-upload-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// NoFound answers unmatched routes with the coded 404 envelope
// NoFound 以统一的 404 错误码响应未匹配路由
func NoFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := app.NewResponse(c)
		response.ToResponse(code.ErrorNotFoundAPI)
		c.Abort()
	}
}

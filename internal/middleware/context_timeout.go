package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextTimeout bounds every request context with the given timeout.
// Long chunk uploads on slow links rely on this being generous enough.
// ContextTimeout 为每个请求上下文设置统一超时，
// 慢速链路上传大分片时需要足够宽裕
func ContextTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

package middleware

import (
	"github.com/chunkvault/chunk-upload-service/pkg/app"
	"github.com/chunkvault/chunk-upload-service/pkg/code"
	"github.com/chunkvault/chunk-upload-service/pkg/limiter"

	"github.com/gin-gonic/gin"
)

// RateLimiter rejects requests once the route's token bucket is drained.
// Routes without a configured bucket pass through untouched.
// RateLimiter 在路由令牌桶耗尽后拒绝请求，未配置桶的路由直接放行
func RateLimiter(l limiter.Face) gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket, ok := l.GetBucket(l.Key(c))
		if ok && bucket.TakeAvailable(1) == 0 {
			response := app.NewResponse(c)
			response.ToResponse(code.ErrorTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}

package routers

import (
	"net/http"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/app"
	"github.com/chunkvault/chunk-upload-service/internal/middleware"
	"github.com/chunkvault/chunk-upload-service/internal/routers/api_router"
	"github.com/chunkvault/chunk-upload-service/pkg/limiter"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
)

// 上传接口限流：init/finalize 低频，分片接口放宽
var methodLimiters = limiter.NewMethodLimiter().AddBuckets(
	limiter.BucketRule{
		Key:          "/api/upload/init",
		FillInterval: time.Second,
		Capacity:     20,
		Quantum:      20,
	},
	limiter.BucketRule{
		Key:          "/api/upload/finalize",
		FillInterval: time.Second,
		Capacity:     10,
		Quantum:      10,
	},
	limiter.BucketRule{
		Key:          "/api/upload/:id/chunk/:index",
		FillInterval: time.Second,
		Capacity:     200,
		Quantum:      200,
	},
)

func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) *gin.Engine {

	// 获取配置
	cfg := appContainer.Config()

	r := gin.New()

	api := r.Group("/api")
	{
		api.Use(middleware.AppInfoWithConfig(app.Name, appContainer.Version().Version))
		api.Use(middleware.TraceMiddlewareWithConfig(cfg.Tracer.Enabled, cfg.Tracer.Header)) // Trace ID 中间件
		api.Use(middleware.RateLimiter(methodLimiters))
		api.Use(middleware.ContextTimeout(time.Duration(cfg.App.DefaultContextTimeout) * time.Second))
		api.Use(middleware.Cors())
		api.Use(middleware.LangWithTranslator(uni))
		api.Use(middleware.AccessLogWithLogger(appContainer.Logger()))
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))

		// 创建 Handlers（注入 App Container）
		uploadHandler := api_router.NewUploadHandler(appContainer)
		healthHandler := api_router.NewHealthHandler(appContainer)
		versionHandler := api_router.NewVersionHandler(appContainer)

		api.POST("/upload/init", uploadHandler.Init)
		api.POST("/upload/:id/chunk/:index", uploadHandler.Chunk)
		api.POST("/upload/finalize", uploadHandler.Finalize)
		api.GET("/upload/:id/status", uploadHandler.Status)

		api.GET("/health", healthHandler.Check)
		api.GET("/version", versionHandler.ServerVersion)
	}

	if cfg.App.UploadSavePath != "" {
		r.StaticFS("/artifacts", http.Dir(cfg.App.UploadSavePath))
	}
	r.Use(middleware.Cors())
	r.NoRoute(middleware.NoFound())

	return r
}

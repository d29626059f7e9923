// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"context"
	"strconv"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/app"
	"github.com/chunkvault/chunk-upload-service/internal/dto"
	"github.com/chunkvault/chunk-upload-service/internal/middleware"
	pkgapp "github.com/chunkvault/chunk-upload-service/pkg/app"
	"github.com/chunkvault/chunk-upload-service/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadHandler upload API router handler
// UploadHandler 上传 API 路由处理器
type UploadHandler struct {
	*Handler
}

// NewUploadHandler creates UploadHandler instance
// NewUploadHandler 创建 UploadHandler 实例
func NewUploadHandler(a *app.App) *UploadHandler {
	return &UploadHandler{Handler: NewHandler(a)}
}

// Init creates or resumes an upload session
// @Summary Initialize upload session
// @Description Create a new chunked upload session, or resume the session matching the (filename, totalSize) fingerprint
// @Tags Upload
// @Accept json
// @Produce json
// @Param params body dto.UploadInitRequest true "Session Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.UploadInitResult} "Success"
// @Router /api/upload/init [post]
func (h *UploadHandler) Init(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.UploadInitRequest{}

	// Parameter binding and validation
	// 参数绑定和验证
	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("UploadHandler.Init.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.Clone().WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()

	result, err := h.App.UploadService().Init(ctx, params)
	if err != nil {
		h.logError(ctx, "UploadHandler.Init", err)
		h.toErrorResponse(response, err)
		return
	}

	metricSessionsInitialized.Inc()

	if result.Resumed {
		response.ToResponse(code.Success.Clone().WithData(result))
		return
	}
	response.ToResponse(code.SuccessCreate.Clone().WithData(result))
}

// Chunk receives one chunk body
// @Summary Ingest chunk
// @Description Persist the raw request body as chunk <index> of session <id>; duplicates overwrite
// @Tags Upload
// @Accept octet-stream
// @Produce json
// @Param id path int true "Session ID"
// @Param index path int true "Chunk Index"
// @Success 200 {object} pkgapp.Res{data=dto.UploadChunkResult} "Success"
// @Router /api/upload/{id}/chunk/{index} [post]
func (h *UploadHandler) Chunk(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ToResponse(code.ErrorInvalidParams.Clone().WithDetails("invalid session id"))
		return
	}
	chunkIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.ToResponse(code.ErrorInvalidChunkIndex.Clone().WithDetails("invalid chunk index"))
		return
	}

	ctx := c.Request.Context()

	result, svcErr := h.App.UploadService().IngestChunk(ctx, sessionID, chunkIndex, c.Request.Body)
	if svcErr != nil {
		h.logError(ctx, "UploadHandler.Chunk", svcErr)
		h.toErrorResponse(response, svcErr)
		return
	}

	metricChunksReceived.Inc()
	metricChunkBytes.Add(float64(result.Size))

	response.ToResponse(code.Success.Clone().WithData(result))
}

// Finalize assembles the artifact and completes the session
// @Summary Finalize upload
// @Description Assemble all chunks in index order, compute the SHA-256 digest and complete the session
// @Tags Upload
// @Accept json
// @Produce json
// @Param params body dto.UploadFinalizeRequest true "Finalize Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.UploadFinalizeResult} "Success"
// @Router /api/upload/finalize [post]
func (h *UploadHandler) Finalize(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.UploadFinalizeRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("UploadHandler.Finalize.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.Clone().WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()

	start := time.Now()
	result, err := h.App.UploadService().Finalize(ctx, params.SessionID)
	if err != nil {
		h.logError(ctx, "UploadHandler.Finalize", err)
		h.toErrorResponse(response, err)
		return
	}

	metricFinalizeDuration.Observe(time.Since(start).Seconds())
	metricUploadsCompleted.Inc()

	response.ToResponse(code.Success.Clone().WithData(result))
}

// Status reports session state and received chunk indices
// @Summary Upload session status
// @Tags Upload
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} pkgapp.Res{data=dto.UploadStatusResult} "Success"
// @Router /api/upload/{id}/status [get]
func (h *UploadHandler) Status(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ToResponse(code.ErrorInvalidParams.Clone().WithDetails("invalid session id"))
		return
	}

	ctx := c.Request.Context()

	result, svcErr := h.App.UploadService().Status(ctx, sessionID)
	if svcErr != nil {
		h.logError(ctx, "UploadHandler.Status", svcErr)
		h.toErrorResponse(response, svcErr)
		return
	}

	response.ToResponse(code.Success.Clone().WithData(result))
}

// toErrorResponse 将业务错误映射为统一响应
func (h *UploadHandler) toErrorResponse(response *pkgapp.Response, err error) {
	if codeErr, ok := err.(*code.Code); ok {
		response.ToResponse(codeErr)
		return
	}
	response.ToResponse(code.ErrorServerInternal.Clone().WithDetails(err.Error()))
}

// logError records error log, including Trace ID
// logError 记录错误日志，包含 Trace ID
func (h *UploadHandler) logError(ctx context.Context, method string, err error) {
	traceID := middleware.GetTraceID(ctx)
	h.App.Logger().Error(method,
		zap.Error(err),
		zap.String("traceId", traceID),
	)
}

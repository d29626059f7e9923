// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

import (
	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/pkg/timex"
)

// UploadInitRequest 初始化上传会话的请求参数
type UploadInitRequest struct {
	Filename    string `json:"filename" form:"filename" binding:"required,safe_filename"`
	TotalSize   int64  `json:"totalSize" form:"totalSize" binding:"required,gt=0"`
	TotalChunks int    `json:"totalChunks" form:"totalChunks" binding:"required,gt=0"`
}

// UploadInitResult 初始化响应：新会话或断点续传会话
type UploadInitResult struct {
	SessionID       int64  `json:"sessionId"`
	Fingerprint     string `json:"fingerprint"`
	Resumed         bool   `json:"resumed"`
	ReceivedIndices []int  `json:"receivedIndices"`
	Message         string `json:"message"`
}

// UploadChunkResult 分片接收响应
type UploadChunkResult struct {
	SessionID  int64      `json:"sessionId"`
	ChunkIndex int        `json:"chunkIndex"`
	Size       int64      `json:"size"`
	ReceivedAt timex.Time `json:"receivedAt"`
}

// UploadFinalizeRequest 合并请求参数
type UploadFinalizeRequest struct {
	SessionID int64 `json:"sessionId" form:"sessionId" binding:"required"`
}

// UploadFinalizeResult 合并完成响应
type UploadFinalizeResult struct {
	SessionID int64  `json:"sessionId"`
	Filename  string `json:"filename"`
	Digest    string `json:"digest"`
	// Entries 产物 zip 的顶层条目（诊断用途，解析失败时为空）
	Entries []string `json:"entries,omitempty"`
}

// UploadStatusResult 会话状态查询响应
type UploadStatusResult struct {
	SessionID       int64  `json:"sessionId"`
	Filename        string `json:"filename"`
	TotalSize       int64  `json:"totalSize"`
	TotalChunks     int    `json:"totalChunks"`
	Status          string `json:"status"`
	FinalHash       string `json:"finalHash,omitempty"`
	ReceivedIndices []int  `json:"receivedIndices"`
}

// StatusFromDomain 由领域模型构建状态响应
func StatusFromDomain(s *domain.UploadSession, received []int) *UploadStatusResult {
	if s == nil {
		return nil
	}
	if received == nil {
		received = []int{}
	}
	return &UploadStatusResult{
		SessionID:       s.ID,
		Filename:        s.Filename,
		TotalSize:       s.TotalSize,
		TotalChunks:     s.TotalChunks,
		Status:          string(s.Status),
		FinalHash:       s.FinalHash,
		ReceivedIndices: received,
	}
}

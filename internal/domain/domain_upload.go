package domain

import "time"

// UploadStatus 定义上传会话状态
type UploadStatus string

const (
	// UploadStatusUploading 会话可接收分片
	UploadStatusUploading UploadStatus = "UPLOADING"
	// UploadStatusProcessing 合并进行中，新分片与并发合并被拒绝
	UploadStatusProcessing UploadStatus = "PROCESSING"
	// UploadStatusCompleted 合并完成，状态不再回退
	UploadStatusCompleted UploadStatus = "COMPLETED"
	// UploadStatusFailed 合并失败
	UploadStatusFailed UploadStatus = "FAILED"
)

// ChunkStatus 定义分片回执状态
type ChunkStatus string

const (
	ChunkStatusPending  ChunkStatus = "PENDING"
	ChunkStatusReceived ChunkStatus = "RECEIVED"
)

// UploadSession 上传会话领域模型
type UploadSession struct {
	ID          int64
	Fingerprint string
	Filename    string
	TotalSize   int64
	TotalChunks int
	Status      UploadStatus
	FinalHash   string
	CreatedAt   time.Time
}

// IsCompleted 判断会话是否已完成
func (s *UploadSession) IsCompleted() bool {
	return s.Status == UploadStatusCompleted
}

// IsProcessing 判断会话是否正在合并
func (s *UploadSession) IsProcessing() bool {
	return s.Status == UploadStatusProcessing
}

// AcceptsChunks 判断会话是否还能接收分片
func (s *UploadSession) AcceptsChunks() bool {
	return s.Status == UploadStatusUploading || s.Status == UploadStatusFailed
}

// ChunkReceipt 分片回执领域模型
type ChunkReceipt struct {
	ID         int64
	UploadID   int64
	ChunkIndex int
	Status     ChunkStatus
	ReceivedAt time.Time
}

// Package domain 定义领域模型和接口
package domain

import (
	"context"
	"time"
)

// SessionRepository 上传会话仓储接口
type SessionRepository interface {
	// GetByID 根据ID获取会话
	GetByID(ctx context.Context, id int64) (*UploadSession, error)

	// GetByFingerprint 根据指纹获取会话
	GetByFingerprint(ctx context.Context, fingerprint string) (*UploadSession, error)

	// Create 创建会话
	Create(ctx context.Context, session *UploadSession) (*UploadSession, error)

	// UpdateStatusIf 仅当会话处于 from 状态时将其置为 to，
	// 返回是否发生了状态切换
	UpdateStatusIf(ctx context.Context, id int64, from, to UploadStatus) (bool, error)

	// CompleteIf 仅当会话处于 from 状态时将其置为 COMPLETED 并写入摘要，
	// 返回是否发生了状态切换
	CompleteIf(ctx context.Context, id int64, from UploadStatus, finalHash string) (bool, error)

	// ListStaleBefore 返回创建时间早于 before 且处于 status 状态的会话
	ListStaleBefore(ctx context.Context, status UploadStatus, before time.Time, limit int) ([]*UploadSession, error)

	// Delete 删除会话
	Delete(ctx context.Context, id int64) error
}

// ChunkRepository 分片回执仓储接口
type ChunkRepository interface {
	// UpsertReceived 写入或覆盖 (上传, 序号) 的回执并刷新接收时间
	UpsertReceived(ctx context.Context, uploadID int64, chunkIndex int) error

	// ReceivedIndices 返回已接收分片的序号列表（升序）
	ReceivedIndices(ctx context.Context, uploadID int64) ([]int, error)

	// CountReceived 返回已接收分片数量
	CountReceived(ctx context.Context, uploadID int64) (int64, error)

	// DeleteByUploadID 删除某个上传的全部回执
	DeleteByUploadID(ctx context.Context, uploadID int64) error
}

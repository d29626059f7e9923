package dao

import (
	"context"

	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/internal/model"
	"github.com/chunkvault/chunk-upload-service/pkg/timex"

	"gorm.io/gorm/clause"
)

// chunkRepository 实现 domain.ChunkRepository 接口
type chunkRepository struct {
	dao *Dao
}

// NewChunkRepository 创建 ChunkRepository 实例
func NewChunkRepository(dao *Dao) domain.ChunkRepository {
	return &chunkRepository{dao: dao}
}

// UpsertReceived 写入或覆盖 (上传, 序号) 的回执
// 重复上报按后写覆盖处理，仅刷新状态与接收时间
func (r *chunkRepository) UpsertReceived(ctx context.Context, uploadID int64, chunkIndex int) error {
	m := &model.UploadChunk{
		UploadID:   uploadID,
		ChunkIndex: chunkIndex,
		Status:     model.ChunkStatusReceived,
		ReceivedAt: timex.Now(),
	}
	return r.dao.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "upload_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      model.ChunkStatusReceived,
				"received_at": m.ReceivedAt,
			}),
		}).
		Create(m).Error
}

// ReceivedIndices 返回已接收分片的序号列表（升序）
func (r *chunkRepository) ReceivedIndices(ctx context.Context, uploadID int64) ([]int, error) {
	var indices []int
	err := r.dao.db.WithContext(ctx).
		Model(&model.UploadChunk{}).
		Where("upload_id = ? AND status = ?", uploadID, model.ChunkStatusReceived).
		Order("chunk_index ASC").
		Pluck("chunk_index", &indices).Error
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// CountReceived 返回已接收分片数量
func (r *chunkRepository) CountReceived(ctx context.Context, uploadID int64) (int64, error) {
	var count int64
	err := r.dao.db.WithContext(ctx).
		Model(&model.UploadChunk{}).
		Where("upload_id = ? AND status = ?", uploadID, model.ChunkStatusReceived).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByUploadID 删除某个上传的全部回执
func (r *chunkRepository) DeleteByUploadID(ctx context.Context, uploadID int64) error {
	return r.dao.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Delete(&model.UploadChunk{}).Error
}

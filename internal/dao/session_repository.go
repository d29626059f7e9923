package dao

import (
	"context"
	"errors"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/internal/model"
	"github.com/chunkvault/chunk-upload-service/pkg/timex"

	"gorm.io/gorm"
)

// sessionRepository 实现 domain.SessionRepository 接口
type sessionRepository struct {
	dao *Dao
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(dao *Dao) domain.SessionRepository {
	return &sessionRepository{dao: dao}
}

// toDomain 将数据库模型转换为领域模型
func (r *sessionRepository) toDomain(m *model.UploadSession) *domain.UploadSession {
	if m == nil {
		return nil
	}
	return &domain.UploadSession{
		ID:          m.ID,
		Fingerprint: m.Fingerprint,
		Filename:    m.Filename,
		TotalSize:   m.TotalSize,
		TotalChunks: m.TotalChunks,
		Status:      domain.UploadStatus(m.Status),
		FinalHash:   m.FinalHash,
		CreatedAt:   time.Time(m.CreatedAt),
	}
}

// toModel 将领域模型转换为数据库模型
func (r *sessionRepository) toModel(s *domain.UploadSession) *model.UploadSession {
	if s == nil {
		return nil
	}
	return &model.UploadSession{
		ID:          s.ID,
		Fingerprint: s.Fingerprint,
		Filename:    s.Filename,
		TotalSize:   s.TotalSize,
		TotalChunks: s.TotalChunks,
		Status:      string(s.Status),
		FinalHash:   s.FinalHash,
		CreatedAt:   timex.Time(s.CreatedAt),
	}
}

// GetByID 根据ID获取会话
func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.UploadSession, error) {
	var m model.UploadSession
	err := r.dao.db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// GetByFingerprint 根据指纹获取会话
func (r *sessionRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.UploadSession, error) {
	var m model.UploadSession
	err := r.dao.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Create 创建会话
func (r *sessionRepository) Create(ctx context.Context, session *domain.UploadSession) (*domain.UploadSession, error) {
	m := r.toModel(session)
	if m.Status == "" {
		m.Status = model.SessionStatusUploading
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = timex.Now()
	}
	if err := r.dao.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// UpdateStatusIf 仅当会话处于 from 状态时切换到 to 状态
// 通过带状态条件的单条 UPDATE 保证并发下最多一个调用方胜出
func (r *sessionRepository) UpdateStatusIf(ctx context.Context, id int64, from, to domain.UploadStatus) (bool, error) {
	result := r.dao.db.WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStaleBefore 返回创建时间早于 before 且处于 status 状态的会话
func (r *sessionRepository) ListStaleBefore(ctx context.Context, status domain.UploadStatus, before time.Time, limit int) ([]*domain.UploadSession, error) {
	var ms []model.UploadSession
	query := r.dao.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(status), timex.Time(before)).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}
	sessions := make([]*domain.UploadSession, 0, len(ms))
	for i := range ms {
		sessions = append(sessions, r.toDomain(&ms[i]))
	}
	return sessions, nil
}

// Delete 删除会话
func (r *sessionRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.UploadSession{}).Error
}

// CompleteIf 仅当会话处于 from 状态时置为 COMPLETED 并写入摘要
func (r *sessionRepository) CompleteIf(ctx context.Context, id int64, from domain.UploadStatus, finalHash string) (bool, error) {
	result := r.dao.db.WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     model.SessionStatusCompleted,
			"final_hash": finalHash,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package upgrade

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionStatusNormalizeMigrate 统一历史会话状态的大小写
// 早期版本以小写形式写入 status 字段，状态机比较是大小写敏感的，
// 小写的存量记录会被当成未知状态拒绝续传
type SessionStatusNormalizeMigrate struct {
	logger *zap.Logger
}

// Version 返回版本号
func (m *SessionStatusNormalizeMigrate) Version() string {
	return "1.1.0"
}

// Description 返回描述
func (m *SessionStatusNormalizeMigrate) Description() string {
	return "Normalize legacy lowercase upload_session.status values to uppercase"
}

// Up 执行升级
func (m *SessionStatusNormalizeMigrate) Up(db *gorm.DB, ctx context.Context) error {
	result := db.WithContext(ctx).
		Table("upload_session").
		Where("status != UPPER(status)").
		Update("status", gorm.Expr("UPPER(status)"))
	if result.Error != nil {
		return result.Error
	}

	if m.logger != nil && result.RowsAffected > 0 {
		m.logger.Info("SessionStatusNormalizeMigrate: normalized legacy status values",
			zap.Int64("rows", result.RowsAffected))
	}

	return nil
}

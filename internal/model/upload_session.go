package model

import "github.com/chunkvault/chunk-upload-service/pkg/timex"

const TableNameUploadSession = "upload_session"

// Session status values // 会话状态值
const (
	SessionStatusUploading  = "UPLOADING"
	SessionStatusProcessing = "PROCESSING"
	SessionStatusCompleted  = "COMPLETED"
	SessionStatusFailed     = "FAILED"
)

// UploadSession mapped from table <upload_session>
type UploadSession struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id" form:"id"`
	Fingerprint string     `gorm:"column:fingerprint;type:varchar(64);not null;uniqueIndex:uk_fingerprint" json:"fingerprint" form:"fingerprint"`
	Filename    string     `gorm:"column:filename;type:varchar(255);not null" json:"filename" form:"filename"`
	TotalSize   int64      `gorm:"column:total_size;not null" json:"totalSize" form:"totalSize"`
	TotalChunks int        `gorm:"column:total_chunks;not null" json:"totalChunks" form:"totalChunks"`
	Status      string     `gorm:"column:status;type:varchar(16);not null;default:UPLOADING;index:idx_session_status" json:"status" form:"status"`
	FinalHash   string     `gorm:"column:final_hash;type:varchar(64)" json:"finalHash" form:"finalHash"`
	CreatedAt   timex.Time `gorm:"column:created_at;type:datetime;autoCreateTime:false" json:"createdAt" form:"createdAt"`
}

// TableName UploadSession's table name
func (*UploadSession) TableName() string {
	return TableNameUploadSession
}

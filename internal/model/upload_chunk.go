package model

import "github.com/chunkvault/chunk-upload-service/pkg/timex"

const TableNameUploadChunk = "upload_chunk"

// Chunk status values // 分片状态值
const (
	ChunkStatusPending  = "PENDING"
	ChunkStatusReceived = "RECEIVED"
)

// UploadChunk mapped from table <upload_chunk>
// One row per (upload, index): the receipt that the chunk bytes landed
// 每个 (上传, 序号) 一行：记录分片落盘的回执
type UploadChunk struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id" form:"id"`
	UploadID   int64      `gorm:"column:upload_id;not null;uniqueIndex:uk_upload_chunk,priority:1" json:"uploadId" form:"uploadId"`
	ChunkIndex int        `gorm:"column:chunk_index;not null;uniqueIndex:uk_upload_chunk,priority:2" json:"chunkIndex" form:"chunkIndex"`
	Status     string     `gorm:"column:status;type:varchar(16);not null;default:PENDING" json:"status" form:"status"`
	ReceivedAt timex.Time `gorm:"column:received_at;type:datetime;autoCreateTime:false" json:"receivedAt" form:"receivedAt"`
}

// TableName UploadChunk's table name
func (*UploadChunk) TableName() string {
	return TableNameUploadChunk
}

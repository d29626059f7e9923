// Package uploader implements the client side chunk transfer scheduler
// Package uploader 实现客户端分片传输调度器
package uploader

// ChunkState 单个分片任务的状态
type ChunkState string

const (
	// ChunkPending 等待调度，重试分片在退避期间也回到此状态
	ChunkPending ChunkState = "PENDING"
	// ChunkUploading 传输进行中
	ChunkUploading ChunkState = "UPLOADING"
	// ChunkDone 传输成功
	ChunkDone ChunkState = "DONE"
	// ChunkFailed 重试耗尽，永久失败
	ChunkFailed ChunkState = "FAILED"
)

// EventKind 事件类型
type EventKind string

const (
	// EventChunkStatus 分片状态变更
	EventChunkStatus EventKind = "chunk_status"
	// EventProgress 整体进度百分比
	EventProgress EventKind = "progress"
	// EventCompleted 合并成功，任务终态
	EventCompleted EventKind = "completed"
	// EventFinalizeFailed 合并失败，任务终态
	// 与单个分片失败是不同的信号
	EventFinalizeFailed EventKind = "finalize_failed"
)

// Event 调度器对外发布的事件
// 按传输完成顺序投递，不保证分片序号顺序
type Event struct {
	Kind       EventKind
	ChunkIndex int
	State      ChunkState
	Progress   int
	Digest     string
	Err        error
}

// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	Upload UploadServiceConfig // Upload related config // 上传相关配置
}

// UploadServiceConfig upload service configuration
// UploadServiceConfig 上传服务配置
type UploadServiceConfig struct {
	// TempPath chunk staging directory, one subdirectory per session
	// TempPath 分片暂存目录，每个会话一个子目录
	TempPath string
	// SavePath directory for assembled artifacts
	// SavePath 合并产物保存目录
	SavePath string
	// SessionTimeout staging retention for stale sessions (e.g. 1d, 12h)
	// SessionTimeout 过期会话的暂存保留时间（支持 1d、12h 等格式）
	SessionTimeout string
	// MaxChunkSize upper bound for a single chunk body, 0 for unlimited
	// MaxChunkSize 单个分片请求体上限，0 表示不限制
	MaxChunkSize int64
}

// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/internal/dto"
	"github.com/chunkvault/chunk-upload-service/pkg/code"
	"github.com/chunkvault/chunk-upload-service/pkg/logger"
	"github.com/chunkvault/chunk-upload-service/pkg/timex"
	"github.com/chunkvault/chunk-upload-service/pkg/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UploadService defines the chunked upload business service interface
// UploadService 定义分片上传业务服务接口
type UploadService interface {
	// Init creates a new upload session or resumes an existing one
	// identified by the (filename, totalSize) fingerprint
	// Init 创建新上传会话，或按 (文件名, 总大小) 指纹恢复已有会话
	Init(ctx context.Context, params *dto.UploadInitRequest) (*dto.UploadInitResult, error)

	// IngestChunk persists one chunk body and records its receipt.
	// Re-sent chunks overwrite the previous bytes and refresh the receipt.
	// IngestChunk 持久化一个分片并记录回执，重复分片覆盖旧数据并刷新回执
	IngestChunk(ctx context.Context, sessionID int64, chunkIndex int, r io.Reader) (*dto.UploadChunkResult, error)

	// Finalize assembles all chunks in index order into the artifact,
	// computes its SHA-256 digest and completes the session. Concurrent
	// calls for the same session collapse to a single assembly.
	// Finalize 按序号顺序合并全部分片为产物文件，计算 SHA-256 摘要并完成会话，
	// 同一会话的并发调用收敛为一次合并
	Finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error)

	// Status reports session state and the exact set of received indices
	// Status 返回会话状态与已接收分片序号集合
	Status(ctx context.Context, sessionID int64) (*dto.UploadStatusResult, error)
}

// uploadService implementation of UploadService interface
// uploadService 实现 UploadService 接口
type uploadService struct {
	sessionRepo domain.SessionRepository // Session repository // 会话仓库
	chunkRepo   domain.ChunkRepository   // Chunk receipt repository // 分片回执仓库
	sf          *singleflight.Group      // Singleflight group // 并发请求合并组
	config      *ServiceConfig           // Service configuration // 服务配置
	logger      *zap.Logger
}

// NewUploadService creates UploadService instance
// NewUploadService 创建 UploadService 实例
func NewUploadService(sessionRepo domain.SessionRepository, chunkRepo domain.ChunkRepository, config *ServiceConfig, lg *zap.Logger) UploadService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &uploadService{
		sessionRepo: sessionRepo,
		chunkRepo:   chunkRepo,
		sf:          &singleflight.Group{},
		config:      config,
		logger:      lg,
	}
}

// Fingerprint derives the resumable session identity from the filename
// and the decimal total size. Content is intentionally not hashed.
// Fingerprint 由文件名与十进制总大小派生会话指纹，不读取文件内容
func Fingerprint(filename string, totalSize int64) string {
	return util.EncodeSHA256(filename + strconv.FormatInt(totalSize, 10))
}

// errChunkTooLarge 分片请求体超出配置上限
var errChunkTooLarge = errors.New("chunk body exceeds configured size limit")

// tempDir 会话分片暂存目录
func (s *uploadService) tempDir(sessionID int64) string {
	return filepath.Join(s.config.Upload.TempPath, strconv.FormatInt(sessionID, 10))
}

// chunkPath 单个分片的暂存路径
func (s *uploadService) chunkPath(sessionID int64, chunkIndex int) string {
	return filepath.Join(s.tempDir(sessionID), strconv.Itoa(chunkIndex)+".part")
}

// artifactPath 合并产物路径
func (s *uploadService) artifactPath(sessionID int64) string {
	return filepath.Join(s.config.Upload.SavePath, strconv.FormatInt(sessionID, 10)+".bin")
}

// Init creates or resumes an upload session
// Init 创建或恢复上传会话
func (s *uploadService) Init(ctx context.Context, params *dto.UploadInitRequest) (*dto.UploadInitResult, error) {
	if params.Filename == "" || params.TotalSize <= 0 || params.TotalChunks <= 0 {
		return nil, code.ErrorInvalidParams
	}

	fingerprint := Fingerprint(params.Filename, params.TotalSize)

	existing, err := s.sessionRepo.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if existing != nil {
		return s.resumeResult(ctx, existing)
	}

	created, err := s.sessionRepo.Create(ctx, &domain.UploadSession{
		Fingerprint: fingerprint,
		Filename:    params.Filename,
		TotalSize:   params.TotalSize,
		TotalChunks: params.TotalChunks,
		Status:      domain.UploadStatusUploading,
	})
	if err != nil {
		// Two clients can race on the same fingerprint; the loser resumes
		// 两个客户端可能在同一指纹上竞争，失败方走恢复路径
		existing, lookupErr := s.sessionRepo.GetByFingerprint(ctx, fingerprint)
		if lookupErr == nil && existing != nil {
			return s.resumeResult(ctx, existing)
		}
		s.logger.Error("upload session create failed",
			zap.String(logger.FieldFingerprint, fingerprint),
			zap.String(logger.FieldFilename, params.Filename),
			zap.Error(err))
		return nil, code.ErrorSessionCreateFailed
	}

	s.logger.Info("upload session initialized",
		zap.Int64(logger.FieldSessionID, created.ID),
		zap.String(logger.FieldFingerprint, fingerprint),
		zap.String(logger.FieldFilename, created.Filename),
		zap.Int64(logger.FieldSize, created.TotalSize),
		zap.Int(logger.FieldChunks, created.TotalChunks))

	return &dto.UploadInitResult{
		SessionID:       created.ID,
		Fingerprint:     fingerprint,
		Resumed:         false,
		ReceivedIndices: []int{},
		Message:         "Upload initialized",
	}, nil
}

// resumeResult 构建断点续传响应
func (s *uploadService) resumeResult(ctx context.Context, session *domain.UploadSession) (*dto.UploadInitResult, error) {
	indices, err := s.chunkRepo.ReceivedIndices(ctx, session.ID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if indices == nil {
		indices = []int{}
	}

	s.logger.Info("upload session resumed",
		zap.Int64(logger.FieldSessionID, session.ID),
		zap.String(logger.FieldFingerprint, session.Fingerprint),
		zap.Int("received", len(indices)),
		zap.Int(logger.FieldChunks, session.TotalChunks))

	return &dto.UploadInitResult{
		SessionID:       session.ID,
		Fingerprint:     session.Fingerprint,
		Resumed:         true,
		ReceivedIndices: indices,
		Message:         "Upload resumed",
	}, nil
}

// IngestChunk persists one chunk and records its receipt
// IngestChunk 保存分片并记录回执
func (s *uploadService) IngestChunk(ctx context.Context, sessionID int64, chunkIndex int, r io.Reader) (*dto.UploadChunkResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if session == nil {
		return nil, code.ErrorSessionNotFound
	}
	if chunkIndex < 0 || chunkIndex >= session.TotalChunks {
		return nil, code.ErrorInvalidChunkIndex.Clone().WithDetails(
			fmt.Sprintf("index %d out of range [0, %d)", chunkIndex, session.TotalChunks))
	}
	if session.IsCompleted() {
		return nil, code.ErrorSessionCompleted
	}
	if session.IsProcessing() {
		return nil, code.ErrorFinalizeInProgress
	}

	size, err := s.writeChunk(sessionID, chunkIndex, r)
	if err != nil {
		if errors.Is(err, errChunkTooLarge) {
			return nil, code.ErrorChunkTooLarge.Clone().WithDetails(
				fmt.Sprintf("chunk body exceeds %d bytes", s.config.Upload.MaxChunkSize))
		}
		s.logger.Error("chunk save failed",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.Int(logger.FieldChunkIndex, chunkIndex),
			zap.Error(err))
		return nil, code.ErrorChunkSaveFailed
	}

	// 落盘成功后才写回执，保证回执存在即分片可读
	if err := s.chunkRepo.UpsertReceived(ctx, sessionID, chunkIndex); err != nil {
		s.logger.Error("chunk receipt upsert failed",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.Int(logger.FieldChunkIndex, chunkIndex),
			zap.Error(err))
		return nil, code.ErrorDBQuery
	}

	s.logger.Info("chunk received",
		zap.Int64(logger.FieldSessionID, sessionID),
		zap.Int(logger.FieldChunkIndex, chunkIndex),
		zap.Int64(logger.FieldSize, size))

	return &dto.UploadChunkResult{
		SessionID:  sessionID,
		ChunkIndex: chunkIndex,
		Size:       size,
		ReceivedAt: timex.Now(),
	}, nil
}

// writeChunk stages the chunk bytes, writing to a scratch file first so a
// concurrent duplicate of the same index never observes a partial chunk
// writeChunk 先写入临时文件再原子改名，避免同序号并发重传读到半截分片
func (s *uploadService) writeChunk(sessionID int64, chunkIndex int, r io.Reader) (int64, error) {
	dir := s.tempDir(sessionID)
	if err := os.MkdirAll(dir, 0754); err != nil {
		return 0, err
	}

	dst := s.chunkPath(sessionID, chunkIndex)
	scratch := dst + "." + uuid.New().String() + ".tmp"

	f, err := os.Create(scratch)
	if err != nil {
		return 0, err
	}

	var src io.Reader = r
	if s.config.Upload.MaxChunkSize > 0 {
		// 多读一个字节，区分"恰好等于上限"与"超出上限"
		src = io.LimitReader(r, s.config.Upload.MaxChunkSize+1)
	}

	size, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(scratch)
		return 0, err
	}
	if s.config.Upload.MaxChunkSize > 0 && size > s.config.Upload.MaxChunkSize {
		// 超限分片整体拒绝，绝不落盘截断后的数据
		f.Close()
		os.Remove(scratch)
		return 0, errChunkTooLarge
	}
	if err := f.Close(); err != nil {
		os.Remove(scratch)
		return 0, err
	}

	if err := os.Rename(scratch, dst); err != nil {
		os.Remove(scratch)
		return 0, err
	}
	return size, nil
}

// Finalize assembles the artifact exactly once per session
// Finalize 对每个会话恰好执行一次合并
func (s *uploadService) Finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error) {
	key := "upload_finalize_" + strconv.FormatInt(sessionID, 10)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.finalize(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.UploadFinalizeResult), nil
}

func (s *uploadService) finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if session == nil {
		return nil, code.ErrorSessionNotFound
	}

	// 重复 finalize：已完成的会话直接返回既有结果，不重新合并
	if session.IsCompleted() {
		return s.completedResult(session), nil
	}
	if session.IsProcessing() {
		return nil, code.ErrorFinalizeInProgress
	}

	count, err := s.chunkRepo.CountReceived(ctx, sessionID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if count != int64(session.TotalChunks) {
		return nil, code.ErrorUploadIncomplete.Clone().WithDetails(
			fmt.Sprintf("received %d of %d chunks", count, session.TotalChunks))
	}

	// 进入 PROCESSING 的 CAS 保证跨进程也只有一个合并者
	won, err := s.sessionRepo.UpdateStatusIf(ctx, sessionID, session.Status, domain.UploadStatusProcessing)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if !won {
		reloaded, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, code.ErrorDBQuery
		}
		if reloaded != nil && reloaded.IsCompleted() {
			return s.completedResult(reloaded), nil
		}
		return nil, code.ErrorFinalizeInProgress
	}

	digest, err := s.assemble(session)
	if err != nil {
		// 合并失败回退到 UPLOADING，允许补传缺失分片后重试
		if _, revertErr := s.sessionRepo.UpdateStatusIf(ctx, sessionID, domain.UploadStatusProcessing, domain.UploadStatusUploading); revertErr != nil {
			s.logger.Error("finalize status revert failed",
				zap.Int64(logger.FieldSessionID, sessionID),
				zap.Error(revertErr))
		}
		s.logger.Error("finalize assembly failed",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.Error(err))
		if os.IsNotExist(err) {
			return nil, code.ErrorChunkMissing
		}
		return nil, code.ErrorAssembleFailed
	}

	done, err := s.sessionRepo.CompleteIf(ctx, sessionID, domain.UploadStatusProcessing, digest)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if !done {
		reloaded, lookupErr := s.sessionRepo.GetByID(ctx, sessionID)
		if lookupErr == nil && reloaded != nil && reloaded.IsCompleted() {
			return s.completedResult(reloaded), nil
		}
		s.logger.Error("finalize completion update lost",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.String(logger.FieldDigest, digest))
		return nil, code.ErrorAssembleFailed
	}

	// 暂存目录清理尽力而为，失败不影响结果
	if err := os.RemoveAll(s.tempDir(sessionID)); err != nil {
		s.logger.Warn("temp dir cleanup failed",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.Error(err))
	}

	result := &dto.UploadFinalizeResult{
		SessionID: sessionID,
		Filename:  session.Filename,
		Digest:    digest,
		Entries:   s.archiveEntries(sessionID),
	}

	s.logger.Info("upload finalized",
		zap.Int64(logger.FieldSessionID, sessionID),
		zap.String(logger.FieldFilename, session.Filename),
		zap.String(logger.FieldDigest, digest))

	return result, nil
}

// completedResult 由已完成会话构建响应
func (s *uploadService) completedResult(session *domain.UploadSession) *dto.UploadFinalizeResult {
	return &dto.UploadFinalizeResult{
		SessionID: session.ID,
		Filename:  session.Filename,
		Digest:    session.FinalHash,
		Entries:   s.archiveEntries(session.ID),
	}
}

// assemble streams every chunk in strict index order into the artifact
// while hashing, then moves the artifact into place atomically
// assemble 按序号顺序将全部分片写入产物并同步计算摘要，最后原子落位
func (s *uploadService) assemble(session *domain.UploadSession) (string, error) {
	if err := os.MkdirAll(s.config.Upload.SavePath, 0754); err != nil {
		return "", err
	}

	final := s.artifactPath(session.ID)
	scratch := final + "." + uuid.New().String() + ".tmp"

	out, err := os.Create(scratch)
	if err != nil {
		return "", err
	}
	defer os.Remove(scratch)

	hashed := util.NewSHA256Writer(out)

	for i := 0; i < session.TotalChunks; i++ {
		chunk, err := os.Open(s.chunkPath(session.ID, i))
		if err != nil {
			out.Close()
			return "", err
		}
		_, err = io.Copy(hashed, chunk)
		chunk.Close()
		if err != nil {
			out.Close()
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(scratch, final); err != nil {
		return "", err
	}
	return hashed.Sum(), nil
}

// archiveEntries lists top-level zip entries of the artifact for
// diagnostics; non-archive artifacts just yield an empty list
// archiveEntries 列出产物 zip 顶层条目用于诊断，非压缩包产物返回空列表
func (s *uploadService) archiveEntries(sessionID int64) []string {
	entries, err := util.ZipEntryNames(s.artifactPath(sessionID))
	if err != nil {
		s.logger.Warn("artifact archive parse skipped",
			zap.Int64(logger.FieldSessionID, sessionID),
			zap.Error(err))
		return []string{}
	}
	return entries
}

// Status reports the session and its received chunk set
// Status 返回会话及其已接收分片集合
func (s *uploadService) Status(ctx context.Context, sessionID int64) (*dto.UploadStatusResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}
	if session == nil {
		return nil, code.ErrorSessionNotFound
	}

	indices, err := s.chunkRepo.ReceivedIndices(ctx, sessionID)
	if err != nil {
		return nil, code.ErrorDBQuery
	}

	return dto.StatusFromDomain(session, indices), nil
}

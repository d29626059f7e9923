package task

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/app"
	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/pkg/logger"
	"github.com/chunkvault/chunk-upload-service/pkg/util"

	"go.uber.org/zap"
)

// sessionCleanBatchSize 单轮清理的会话数量上限
const sessionCleanBatchSize = 100

// SessionCleanTask 过期上传会话清理任务
// 删除超过保留时间仍未完成的会话及其分片暂存目录
type SessionCleanTask struct {
	app       *app.App
	retention time.Duration
}

// Name 任务名称
func (t *SessionCleanTask) Name() string {
	return "SessionClean"
}

// LoopInterval 执行间隔
func (t *SessionCleanTask) LoopInterval() time.Duration {
	return time.Hour
}

// IsStartupRun 是否立即执行一次
func (t *SessionCleanTask) IsStartupRun() bool {
	return true
}

// Run 执行清理任务
// 逐会话的删除经应用容器的 Worker Pool 执行，优雅关闭时等待收尾
func (t *SessionCleanTask) Run(ctx context.Context) error {
	done := t.app.TrackOperation()
	defer done()

	cutoff := time.Now().Add(-t.retention)

	var sessions []*domain.UploadSession
	for _, status := range []domain.UploadStatus{domain.UploadStatusUploading, domain.UploadStatusFailed} {
		batch, err := t.app.SessionRepo.ListStaleBefore(ctx, status, cutoff, sessionCleanBatchSize)
		if err != nil {
			t.app.Logger().Error("task log",
				zap.String("task", t.Name()),
				zap.String("status", string(status)),
				zap.String("msg", "failed"),
				zap.Error(err))
			return err
		}
		sessions = append(sessions, batch...)
	}

	if len(sessions) == 0 {
		t.app.Logger().Info("task log",
			zap.String("task", t.Name()),
			zap.String("msg", "success"),
			zap.Int("cleaned", 0))
		return nil
	}

	tempPath := t.app.Config().App.TempPath
	cleaned := 0

	for _, session := range sessions {
		err := t.app.SubmitTask(ctx, func(taskCtx context.Context) error {
			return t.cleanSession(taskCtx, session, tempPath)
		})
		if err != nil {
			t.app.Logger().Error("task log",
				zap.String("task", t.Name()),
				zap.Int64(logger.FieldSessionID, session.ID),
				zap.String("msg", "clean failed"),
				zap.Error(err))
			continue
		}
		cleaned++
	}

	t.app.Logger().Info("task log",
		zap.String("task", t.Name()),
		zap.String("msg", "success"),
		zap.Int("cleaned", cleaned))

	return nil
}

// cleanSession 删除单个会话的回执、记录与暂存目录
func (t *SessionCleanTask) cleanSession(ctx context.Context, session *domain.UploadSession, tempPath string) error {
	if err := t.app.ChunkRepo.DeleteByUploadID(ctx, session.ID); err != nil {
		return err
	}
	if err := t.app.SessionRepo.Delete(ctx, session.ID); err != nil {
		return err
	}

	// 会话记录删除后再清空暂存目录，目录残留只在下一轮补偿
	dir := filepath.Join(tempPath, strconv.FormatInt(session.ID, 10))
	if err := os.RemoveAll(dir); err != nil {
		t.app.Logger().Warn("task log",
			zap.String("task", t.Name()),
			zap.Int64(logger.FieldSessionID, session.ID),
			zap.String(logger.FieldPath, dir),
			zap.String("msg", "remove temp dir failed"),
			zap.Error(err))
	}
	return nil
}

// NewSessionCleanTask 创建过期会话清理任务
func NewSessionCleanTask(appContainer *app.App) (Task, error) {
	timeoutStr := appContainer.Config().App.UploadSessionTimeout
	if timeoutStr == "" {
		return nil, nil
	}

	retention, err := util.ParseDuration(timeoutStr)
	if err != nil {
		return nil, err
	}

	return &SessionCleanTask{
		app:       appContainer,
		retention: retention,
	}, nil
}

package task

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/app"
	"github.com/chunkvault/chunk-upload-service/internal/dao"
	"github.com/chunkvault/chunk-upload-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestApp 构建带 sqlite 与临时目录的应用容器
func newTestApp(t *testing.T) *app.App {
	t.Helper()

	root := t.TempDir()
	db, err := dao.NewDBEngineWithConfig(dao.DatabaseConfig{
		Type:        "sqlite",
		Path:        filepath.Join(root, "task.db"),
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)

	cfg := &app.AppConfig{}
	cfg.App.TempPath = filepath.Join(root, "temp")
	cfg.App.UploadSavePath = filepath.Join(root, "save")
	cfg.App.UploadSessionTimeout = "1d"

	a, err := app.NewApp(cfg, zap.NewNop(), db)
	require.NoError(t, err)
	return a
}

func seedSession(t *testing.T, a *app.App, fingerprint string, status domain.UploadStatus, createdAt time.Time) *domain.UploadSession {
	t.Helper()
	s, err := a.SessionRepo.Create(context.Background(), &domain.UploadSession{
		Fingerprint: fingerprint,
		Filename:    fingerprint + ".bin",
		TotalSize:   8,
		TotalChunks: 2,
		Status:      status,
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
	return s
}

func TestSessionCleanTaskRemovesStaleSessions(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	stale := seedSession(t, a, "stale", domain.UploadStatusUploading, old)
	failed := seedSession(t, a, "failed", domain.UploadStatusFailed, old)
	completed := seedSession(t, a, "done", domain.UploadStatusCompleted, old)
	fresh := seedSession(t, a, "fresh", domain.UploadStatusUploading, time.Now())

	require.NoError(t, a.ChunkRepo.UpsertReceived(ctx, stale.ID, 0))
	staleDir := filepath.Join(a.Config().App.TempPath, strconv.FormatInt(stale.ID, 10))
	require.NoError(t, os.MkdirAll(staleDir, 0754))

	cleanTask, err := NewSessionCleanTask(a)
	require.NoError(t, err)
	require.NoError(t, cleanTask.Run(ctx))

	// 过期的 UPLOADING 与 FAILED 会话连同回执和暂存目录一起删除
	for _, id := range []int64{stale.ID, failed.ID} {
		got, err := a.SessionRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	count, err := a.ChunkRepo.CountReceived(ctx, stale.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, statErr := os.Stat(staleDir)
	assert.True(t, os.IsNotExist(statErr))

	// 已完成与未过期的会话保留
	for _, id := range []int64{completed.ID, fresh.ID} {
		got, err := a.SessionRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
}

func TestNewSessionCleanTaskDisabledWithoutTimeout(t *testing.T) {
	a := newTestApp(t)
	a.Config().App.UploadSessionTimeout = ""

	cleanTask, err := NewSessionCleanTask(a)
	require.NoError(t, err)
	assert.Nil(t, cleanTask)
}

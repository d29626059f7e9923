package dao

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chunkvault/chunk-upload-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDao 创建基于临时 sqlite 文件的测试 Dao
func newTestDao(t *testing.T) *Dao {
	t.Helper()
	db, err := NewDBEngineWithConfig(DatabaseConfig{
		Type:        "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)
	return New(db, nil)
}

func newTestSession(fingerprint string, chunks int) *domain.UploadSession {
	return &domain.UploadSession{
		Fingerprint: fingerprint,
		Filename:    "report.zip",
		TotalSize:   12 * 1024 * 1024,
		TotalChunks: chunks,
		Status:      domain.UploadStatusUploading,
	}
}

func TestSessionRepositoryCreateAndGet(t *testing.T) {
	d := newTestDao(t)
	repo := NewSessionRepository(d)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestSession("fp-1", 3))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, domain.UploadStatusUploading, created.Status)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "report.zip", byID.Filename)

	byFp, err := repo.GetByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, byFp)
	assert.Equal(t, created.ID, byFp.ID)

	missing, err := repo.GetByID(ctx, created.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionRepositoryFingerprintUnique(t *testing.T) {
	d := newTestDao(t)
	repo := NewSessionRepository(d)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestSession("fp-dup", 3))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestSession("fp-dup", 3))
	assert.Error(t, err)
}

func TestSessionRepositoryUpdateStatusIf(t *testing.T) {
	d := newTestDao(t)
	repo := NewSessionRepository(d)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestSession("fp-cas", 3))
	require.NoError(t, err)

	// 第一次 CAS 胜出
	ok, err := repo.UpdateStatusIf(ctx, created.ID, domain.UploadStatusUploading, domain.UploadStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// 状态已经不是 UPLOADING，第二次 CAS 失败
	ok, err = repo.UpdateStatusIf(ctx, created.ID, domain.UploadStatusUploading, domain.UploadStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusProcessing, got.Status)
}

func TestSessionRepositoryCompleteIf(t *testing.T) {
	d := newTestDao(t)
	repo := NewSessionRepository(d)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestSession("fp-done", 3))
	require.NoError(t, err)

	ok, err := repo.UpdateStatusIf(ctx, created.ID, domain.UploadStatusUploading, domain.UploadStatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.CompleteIf(ctx, created.ID, domain.UploadStatusProcessing, "deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusCompleted, got.Status)
	assert.Equal(t, "deadbeef", got.FinalHash)

	// COMPLETED 不再回退
	ok, err = repo.UpdateStatusIf(ctx, created.ID, domain.UploadStatusProcessing, domain.UploadStatusUploading)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChunkRepositoryUpsertIdempotent(t *testing.T) {
	d := newTestDao(t)
	sessions := NewSessionRepository(d)
	chunks := NewChunkRepository(d)
	ctx := context.Background()

	created, err := sessions.Create(ctx, newTestSession("fp-chunks", 5))
	require.NoError(t, err)

	// 乱序接收，其中 2 号分片重复接收
	for _, idx := range []int{2, 0, 4, 2, 2} {
		require.NoError(t, chunks.UpsertReceived(ctx, created.ID, idx))
	}

	indices, err := chunks.ReceivedIndices(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, indices)

	count, err := chunks.CountReceived(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestChunkRepositoryDeleteByUploadID(t *testing.T) {
	d := newTestDao(t)
	sessions := NewSessionRepository(d)
	chunks := NewChunkRepository(d)
	ctx := context.Background()

	created, err := sessions.Create(ctx, newTestSession("fp-del", 2))
	require.NoError(t, err)

	require.NoError(t, chunks.UpsertReceived(ctx, created.ID, 0))
	require.NoError(t, chunks.UpsertReceived(ctx, created.ID, 1))

	require.NoError(t, chunks.DeleteByUploadID(ctx, created.ID))

	count, err := chunks.CountReceived(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

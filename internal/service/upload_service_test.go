package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/chunkvault/chunk-upload-service/internal/dao"
	"github.com/chunkvault/chunk-upload-service/internal/domain"
	"github.com/chunkvault/chunk-upload-service/internal/dto"
	"github.com/chunkvault/chunk-upload-service/pkg/code"
	"github.com/chunkvault/chunk-upload-service/pkg/util"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadTestEnv struct {
	svc      UploadService
	sessions domain.SessionRepository
	chunks   domain.ChunkRepository
	tempPath string
	savePath string
}

// newUploadTestEnv 创建带临时目录与 sqlite 的测试环境
func newUploadTestEnv(t *testing.T) *uploadTestEnv {
	t.Helper()
	return newUploadTestEnvWithCap(t, 0)
}

// newUploadTestEnvWithCap 同上，并限制单个分片请求体大小
func newUploadTestEnvWithCap(t *testing.T, maxChunkSize int64) *uploadTestEnv {
	t.Helper()

	root := t.TempDir()
	db, err := dao.NewDBEngineWithConfig(dao.DatabaseConfig{
		Type:        "sqlite",
		Path:        filepath.Join(root, "upload.db"),
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)

	d := dao.New(db, nil)
	sessions := dao.NewSessionRepository(d)
	chunks := dao.NewChunkRepository(d)

	cfg := &ServiceConfig{
		Upload: UploadServiceConfig{
			TempPath:     filepath.Join(root, "temp"),
			SavePath:     filepath.Join(root, "save"),
			MaxChunkSize: maxChunkSize,
		},
	}

	return &uploadTestEnv{
		svc:      NewUploadService(sessions, chunks, cfg, nil),
		sessions: sessions,
		chunks:   chunks,
		tempPath: cfg.Upload.TempPath,
		savePath: cfg.Upload.SavePath,
	}
}

// assertCode 断言错误携带预期的业务错误码
func assertCode(t *testing.T, err error, want *code.Code) {
	t.Helper()
	require.Error(t, err)
	got, ok := err.(*code.Code)
	require.True(t, ok, "expected coded error, got %v", err)
	assert.Equal(t, want.Code(), got.Code())
}

func (e *uploadTestEnv) initSession(t *testing.T, filename string, totalSize int64, totalChunks int) *dto.UploadInitResult {
	t.Helper()
	res, err := e.svc.Init(context.Background(), &dto.UploadInitRequest{
		Filename:    filename,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
	})
	require.NoError(t, err)
	return res
}

func (e *uploadTestEnv) sendChunk(t *testing.T, sessionID int64, index int, data []byte) {
	t.Helper()
	_, err := e.svc.IngestChunk(context.Background(), sessionID, index, bytes.NewReader(data))
	require.NoError(t, err)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestUploadInitValidation(t *testing.T) {
	env := newUploadTestEnv(t)

	_, err := env.svc.Init(context.Background(), &dto.UploadInitRequest{
		Filename: "", TotalSize: 10, TotalChunks: 1,
	})
	assertCode(t, err, code.ErrorInvalidParams)

	_, err = env.svc.Init(context.Background(), &dto.UploadInitRequest{
		Filename: "a.bin", TotalSize: 0, TotalChunks: 1,
	})
	assertCode(t, err, code.ErrorInvalidParams)
}

func TestUploadInitAndResume(t *testing.T) {
	env := newUploadTestEnv(t)

	first := env.initSession(t, "report.zip", 12*1024*1024, 3)
	assert.False(t, first.Resumed)
	assert.Empty(t, first.ReceivedIndices)
	assert.Equal(t, "Upload initialized", first.Message)

	env.sendChunk(t, first.SessionID, 2, []byte("third"))
	env.sendChunk(t, first.SessionID, 0, []byte("first"))

	// 同名同大小再次 init 恢复同一会话
	second := env.initSession(t, "report.zip", 12*1024*1024, 3)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, []int{0, 2}, second.ReceivedIndices)
	assert.Equal(t, "Upload resumed", second.Message)

	// 大小不同则是另一个会话
	other := env.initSession(t, "report.zip", 11*1024*1024, 3)
	assert.False(t, other.Resumed)
	assert.NotEqual(t, first.SessionID, other.SessionID)
}

func TestIngestChunkValidation(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.IngestChunk(ctx, 424242, 0, bytes.NewReader([]byte("x")))
	assertCode(t, err, code.ErrorSessionNotFound)

	created := env.initSession(t, "a.bin", 100, 3)

	_, err = env.svc.IngestChunk(ctx, created.SessionID, -1, bytes.NewReader([]byte("x")))
	assertCode(t, err, code.ErrorInvalidChunkIndex)

	_, err = env.svc.IngestChunk(ctx, created.SessionID, 3, bytes.NewReader([]byte("x")))
	assertCode(t, err, code.ErrorInvalidChunkIndex)
}

func TestFinalizeIncompleteLeavesSessionUploading(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	created := env.initSession(t, "a.bin", 100, 3)
	env.sendChunk(t, created.SessionID, 0, []byte("aa"))
	env.sendChunk(t, created.SessionID, 2, []byte("cc"))

	_, err := env.svc.Finalize(ctx, created.SessionID)
	assertCode(t, err, code.ErrorUploadIncomplete)

	// 会话未被扣押，补传后可以重试
	status, err := env.svc.Status(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.UploadStatusUploading), status.Status)

	env.sendChunk(t, created.SessionID, 1, []byte("bb"))
	res, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex([]byte("aabbcc")), res.Digest)
}

func TestFinalizeOrdersChunksByIndex(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	created := env.initSession(t, "ordered.bin", 9, 3)

	// 乱序上传，合并必须按序号拼接
	env.sendChunk(t, created.SessionID, 1, []byte("BBB"))
	env.sendChunk(t, created.SessionID, 2, []byte("CCC"))
	env.sendChunk(t, created.SessionID, 0, []byte("AAA"))

	res, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex([]byte("AAABBBCCC")), res.Digest)

	artifact := filepath.Join(env.savePath, fmt.Sprintf("%d.bin", created.SessionID))
	content, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "AAABBBCCC", string(content))

	// 暂存目录已清理
	_, err = os.Stat(filepath.Join(env.tempPath, fmt.Sprintf("%d", created.SessionID)))
	assert.True(t, os.IsNotExist(err))
}

func TestIngestDuplicateChunkLastWriteWins(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	created := env.initSession(t, "dup.bin", 6, 2)
	env.sendChunk(t, created.SessionID, 0, []byte("old"))
	env.sendChunk(t, created.SessionID, 1, []byte("222"))
	env.sendChunk(t, created.SessionID, 0, []byte("new"))

	status, err := env.svc.Status(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, status.ReceivedIndices)

	res, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex([]byte("new222")), res.Digest)
}

func TestFinalizeIdempotent(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	created := env.initSession(t, "idem.bin", 4, 2)
	env.sendChunk(t, created.SessionID, 0, []byte("ab"))
	env.sendChunk(t, created.SessionID, 1, []byte("cd"))

	first, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)

	second, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)

	status, err := env.svc.Status(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.UploadStatusCompleted), status.Status)
	assert.Equal(t, first.Digest, status.FinalHash)

	// 完成后的会话拒绝新分片
	_, err = env.svc.IngestChunk(ctx, created.SessionID, 0, bytes.NewReader([]byte("late")))
	assertCode(t, err, code.ErrorSessionCompleted)
}

func TestFinalizeConcurrentSingleAssembly(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	created := env.initSession(t, "race.bin", 6, 3)
	env.sendChunk(t, created.SessionID, 0, []byte("11"))
	env.sendChunk(t, created.SessionID, 1, []byte("22"))
	env.sendChunk(t, created.SessionID, 2, []byte("33"))

	want := sha256Hex([]byte("112233"))

	var wg sync.WaitGroup
	results := make([]*dto.UploadFinalizeResult, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.Finalize(ctx, created.SessionID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i].Digest)
	}
}

func TestFinalizeZipArtifactEntries(t *testing.T) {
	env := newUploadTestEnv(t)
	ctx := context.Background()

	// 构造一个 zip 产物并按 4KB 分片上传
	zipPath := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, util.ZipBytes(map[string][]byte{
		"readme.md":       bytes.Repeat([]byte("r"), 3000),
		"assets/logo.png": bytes.Repeat([]byte("p"), 5000),
	}, zipPath))

	content, err := os.ReadFile(zipPath)
	require.NoError(t, err)

	const chunkSize = 4096
	totalChunks := (len(content) + chunkSize - 1) / chunkSize

	created := env.initSession(t, "bundle.zip", int64(len(content)), totalChunks)
	for i := 0; i < totalChunks; i++ {
		end := (i + 1) * chunkSize
		if end > len(content) {
			end = len(content)
		}
		env.sendChunk(t, created.SessionID, i, content[i*chunkSize:end])
	}

	res, err := env.svc.Finalize(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex(content), res.Digest)
	assert.Equal(t, []string{"assets", "readme.md"}, res.Entries)
}

// TestFinalizeDigestProperty 随机分片内容下摘要与整体哈希一致
func TestFinalizeDigestProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("assembled digest matches whole-content hash", prop.ForAll(
		func(chunks [][]byte) bool {
			if len(chunks) == 0 {
				return true
			}
			env := newUploadTestEnv(t)
			ctx := context.Background()

			var whole []byte
			for _, c := range chunks {
				whole = append(whole, c...)
			}
			total := int64(len(whole))
			if total == 0 {
				total = 1
			}

			created, err := env.svc.Init(ctx, &dto.UploadInitRequest{
				Filename:    fmt.Sprintf("prop-%d.bin", len(chunks)),
				TotalSize:   total,
				TotalChunks: len(chunks),
			})
			if err != nil {
				return false
			}
			for i, c := range chunks {
				if _, err := env.svc.IngestChunk(ctx, created.SessionID, i, bytes.NewReader(c)); err != nil {
					return false
				}
			}

			res, err := env.svc.Finalize(ctx, created.SessionID)
			if err != nil {
				return false
			}
			return res.Digest == sha256Hex(whole)
		},
		gen.SliceOfN(4, gen.SliceOf(gen.UInt8())).Map(func(raw [][]uint8) [][]byte {
			out := make([][]byte, len(raw))
			for i, r := range raw {
				out[i] = append([]byte{}, r...)
			}
			return out
		}),
	))

	properties.TestingRun(t)
}

func TestIngestChunkRejectsOversizedBody(t *testing.T) {
	env := newUploadTestEnvWithCap(t, 8)
	res := env.initSession(t, "capped.bin", 20, 3)

	// 超限分片整体拒绝，不保存截断数据也不记回执
	_, err := env.svc.IngestChunk(context.Background(), res.SessionID, 0,
		bytes.NewReader(bytes.Repeat([]byte("x"), 9)))
	assertCode(t, err, code.ErrorChunkTooLarge)

	status, err := env.svc.Status(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, status.ReceivedIndices)

	_, statErr := os.Stat(filepath.Join(env.tempPath,
		strconv.FormatInt(res.SessionID, 10), "0.part"))
	assert.True(t, os.IsNotExist(statErr))

	// 恰好等于上限的分片正常接收
	got, err := env.svc.IngestChunk(context.Background(), res.SessionID, 0,
		bytes.NewReader(bytes.Repeat([]byte("x"), 8)))
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Size)
}

func TestFinalizeMissingChunkFileRevertsStatus(t *testing.T) {
	env := newUploadTestEnv(t)
	parts := [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")}
	res := env.initSession(t, "gap.bin", 9, 3)
	for i, part := range parts {
		env.sendChunk(t, res.SessionID, i, part)
	}

	// 回执仍在但磁盘分片丢失，合并必须中止
	missing := filepath.Join(env.tempPath, strconv.FormatInt(res.SessionID, 10), "1.part")
	require.NoError(t, os.Remove(missing))

	_, err := env.svc.Finalize(context.Background(), res.SessionID)
	assertCode(t, err, code.ErrorChunkMissing)

	session, err := env.sessions.GetByID(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, domain.UploadStatusUploading, session.Status)

	// 补传缺失分片后可重新合并
	env.sendChunk(t, res.SessionID, 1, parts[1])
	final, err := env.svc.Finalize(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sha256Hex([]byte("aaabbbccc")), final.Digest)
}

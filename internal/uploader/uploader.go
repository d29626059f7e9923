package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/dto"
	"github.com/chunkvault/chunk-upload-service/pkg/logger"
	"github.com/chunkvault/chunk-upload-service/pkg/workerpool"

	"go.uber.org/zap"
)

var (
	// ErrAborted 上传被调用方中止
	ErrAborted = errors.New("upload aborted")
	// ErrStalled 存在重试耗尽的分片，任务无法继续推进
	ErrStalled = errors.New("upload stalled: chunks failed permanently")
)

// Config 调度器配置
type Config struct {
	// ChunkSize 分片大小（字节），默认 5MB
	ChunkSize int64
	// Concurrency 同时传输的分片数量上限，默认 3
	Concurrency int
	// MaxRetries 单个分片最大重试次数，默认 3
	MaxRetries int
	// BackoffUnit 退避时间单位，实际延迟为 2^retries 个单位，默认 1 秒
	BackoffUnit time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ChunkSize:   5 * 1024 * 1024,
		Concurrency: 3,
		MaxRetries:  3,
		BackoffUnit: time.Second,
	}
}

// chunkTask 单个分片任务
type chunkTask struct {
	index   int
	state   ChunkState
	retries int
}

// Manager 分片上传调度器
// 并发受限的任务队列：重试插队、指数退避、完成后恰好一次 finalize
type Manager struct {
	transport Transport
	config    Config
	logger    *zap.Logger

	filename    string
	src         io.ReaderAt
	size        int64
	totalChunks int

	pool *workerpool.Pool

	mu           sync.Mutex
	tasks        []*chunkTask
	queue        []int
	inflight     int
	waitingRetry int
	doneCount    int
	aborted      bool
	finalizing   bool
	finished     bool
	sessionID    int64

	events   chan Event
	terminal chan struct{}
	result   *dto.UploadFinalizeResult
	err      error
}

// NewManager 创建调度器实例
// src 为文件内容的随机读取接口，size 为文件总大小
func NewManager(transport Transport, filename string, src io.ReaderAt, size int64, cfg *Config, lg *zap.Logger) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if lg == nil {
		lg = zap.NewNop()
	}

	config := DefaultConfig()
	if cfg != nil {
		if cfg.ChunkSize > 0 {
			config.ChunkSize = cfg.ChunkSize
		}
		if cfg.Concurrency > 0 {
			config.Concurrency = cfg.Concurrency
		}
		if cfg.MaxRetries > 0 {
			config.MaxRetries = cfg.MaxRetries
		}
		if cfg.BackoffUnit > 0 {
			config.BackoffUnit = cfg.BackoffUnit
		}
	}

	totalChunks := int((size + config.ChunkSize - 1) / config.ChunkSize)

	tasks := make([]*chunkTask, totalChunks)
	for i := range tasks {
		tasks[i] = &chunkTask{index: i, state: ChunkPending}
	}

	m := &Manager{
		transport:   transport,
		config:      config,
		logger:      lg,
		filename:    filename,
		src:         src,
		size:        size,
		totalChunks: totalChunks,
		tasks:       tasks,
		// 事件通道按事件总量上限预留容量，正常消费下不会阻塞
		events:   make(chan Event, totalChunks*4+16),
		terminal: make(chan struct{}),
	}

	poolCfg := workerpool.Config{
		MaxWorkers: config.Concurrency,
		QueueSize:  totalChunks + config.Concurrency,
	}
	m.pool = workerpool.New(&poolCfg, lg)

	return m, nil
}

// TotalChunks 返回分片总数
func (m *Manager) TotalChunks() int {
	return m.totalChunks
}

// Events 返回事件通道
// 事件按传输完成顺序投递，终态后通道关闭，调用方需要持续消费
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Start 初始化会话并开始调度
// 服务端已接收的分片直接标记 DONE，不进入队列
func (m *Manager) Start(ctx context.Context) error {
	initResult, err := m.transport.Init(ctx, m.filename, m.size, m.totalChunks)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	m.mu.Lock()
	m.sessionID = initResult.SessionID

	for _, index := range initResult.ReceivedIndices {
		if index >= 0 && index < m.totalChunks && m.tasks[index].state == ChunkPending {
			m.tasks[index].state = ChunkDone
			m.doneCount++
			m.emit(Event{Kind: EventChunkStatus, ChunkIndex: index, State: ChunkDone})
		}
	}

	for _, task := range m.tasks {
		if task.state == ChunkPending {
			m.queue = append(m.queue, task.index)
		}
	}

	m.logger.Info("upload session ready",
		zap.Int64(logger.FieldSessionID, initResult.SessionID),
		zap.Bool("resumed", initResult.Resumed),
		zap.Int(logger.FieldChunks, m.totalChunks),
		zap.Int("alreadyReceived", m.doneCount))

	m.processQueue(ctx)
	m.mu.Unlock()

	return nil
}

// Wait 阻塞直到任务终态或 ctx 结束
func (m *Manager) Wait(ctx context.Context) (*dto.UploadFinalizeResult, error) {
	select {
	case <-m.terminal:
		return m.result, m.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort 中止调度
// 只抑制后续的派发与重试入队，不打断进行中的传输
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aborted || m.finished {
		return
	}
	m.aborted = true
	m.logger.Info("upload aborted", zap.Int64(logger.FieldSessionID, m.sessionID))
	if m.inflight == 0 && !m.finalizing {
		m.finish(nil, ErrAborted)
	}
}

// progress 当前整体进度百分比，向下取整
// 调用方需持有 m.mu
func (m *Manager) progress() int {
	if m.totalChunks == 0 {
		return 0
	}
	return m.doneCount * 100 / m.totalChunks
}

// emit 投递事件，通道满时丢弃并告警
// 调用方需持有 m.mu
func (m *Manager) emit(ev Event) {
	if m.finished {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("event channel full, dropping event", zap.String("kind", string(ev.Kind)))
	}
}

// finish 进入终态，恰好执行一次
// 调用方需持有 m.mu
func (m *Manager) finish(result *dto.UploadFinalizeResult, err error) {
	if m.finished {
		return
	}
	m.result = result
	m.err = err
	m.finished = true
	close(m.events)
	close(m.terminal)
	go m.pool.Shutdown(context.Background())
}

// processQueue 在并发上限内派发队首任务，空闲时检查完成条件
// 调用方需持有 m.mu
func (m *Manager) processQueue(ctx context.Context) {
	if m.finished || m.finalizing {
		return
	}

	if m.aborted {
		if m.inflight == 0 {
			m.finish(nil, ErrAborted)
		}
		return
	}

	for m.inflight < m.config.Concurrency && len(m.queue) > 0 {
		index := m.queue[0]
		m.queue = m.queue[1:]
		task := m.tasks[index]
		task.state = ChunkUploading
		m.inflight++
		m.emit(Event{Kind: EventChunkStatus, ChunkIndex: index, State: ChunkUploading})

		idx := index
		if err := m.pool.SubmitAsync(ctx, func(taskCtx context.Context) error {
			m.uploadChunk(taskCtx, idx)
			return nil
		}); err != nil {
			// 池已关闭或队列溢出，按一次传输失败处理
			m.inflight--
			m.handleFailureLocked(ctx, idx, err)
		}
	}

	if m.inflight == 0 && len(m.queue) == 0 && m.waitingRetry == 0 {
		if m.doneCount == m.totalChunks {
			// 单一派发点保证 finalize 只触发一次
			m.finalizing = true
			go m.finalize(ctx)
			return
		}
		// 存在永久失败的分片，任务无法到达完成态
		m.finish(nil, ErrStalled)
	}
}

// chunkRange 分片的字节范围 [start, end)
func (m *Manager) chunkRange(index int) (int64, int64) {
	start := int64(index) * m.config.ChunkSize
	end := start + m.config.ChunkSize
	if end > m.size {
		end = m.size
	}
	return start, end
}

// uploadChunk 执行单个分片的传输
func (m *Manager) uploadChunk(ctx context.Context, index int) {
	start, end := m.chunkRange(index)
	buf := make([]byte, end-start)
	if _, err := m.src.ReadAt(buf, start); err != nil && err != io.EOF {
		m.mu.Lock()
		m.inflight--
		m.handleFailureLocked(ctx, index, err)
		m.mu.Unlock()
		return
	}

	err := m.transport.SendChunk(ctx, m.sessionID, index, buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--

	if err != nil {
		m.handleFailureLocked(ctx, index, err)
		return
	}

	task := m.tasks[index]
	task.state = ChunkDone
	m.doneCount++
	m.emit(Event{Kind: EventChunkStatus, ChunkIndex: index, State: ChunkDone})
	m.emit(Event{Kind: EventProgress, Progress: m.progress()})
	m.processQueue(ctx)
}

// handleFailureLocked 处理一次传输失败：退避重试或永久失败
// 调用方需持有 m.mu
func (m *Manager) handleFailureLocked(ctx context.Context, index int, cause error) {
	task := m.tasks[index]

	if task.retries < m.config.MaxRetries {
		task.retries++
		task.state = ChunkPending
		backoff := time.Duration(1<<uint(task.retries)) * m.config.BackoffUnit
		m.waitingRetry++

		m.logger.Warn("chunk transfer failed, will retry",
			zap.Int64(logger.FieldSessionID, m.sessionID),
			zap.Int(logger.FieldChunkIndex, index),
			zap.Int("retries", task.retries),
			zap.Duration("backoff", backoff),
			zap.Error(cause))

		// 退避期间不占用并发额度，到期后插到队首优先重试
		time.AfterFunc(backoff, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.waitingRetry--
			if m.aborted || m.finished {
				m.processQueue(ctx)
				return
			}
			m.queue = append([]int{index}, m.queue...)
			m.processQueue(ctx)
		})
		return
	}

	task.state = ChunkFailed
	m.logger.Error("chunk transfer failed permanently",
		zap.Int64(logger.FieldSessionID, m.sessionID),
		zap.Int(logger.FieldChunkIndex, index),
		zap.Error(cause))
	m.emit(Event{Kind: EventChunkStatus, ChunkIndex: index, State: ChunkFailed})
	m.processQueue(ctx)
}

// finalize 请求服务端合并并发布终态事件
func (m *Manager) finalize(ctx context.Context) {
	result, err := m.transport.Finalize(ctx, m.sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.logger.Error("finalize failed",
			zap.Int64(logger.FieldSessionID, m.sessionID),
			zap.Error(err))
		m.emit(Event{Kind: EventFinalizeFailed, Err: err})
		m.finish(nil, err)
		return
	}

	m.logger.Info("upload completed",
		zap.Int64(logger.FieldSessionID, m.sessionID),
		zap.String(logger.FieldDigest, result.Digest))
	m.emit(Event{Kind: EventProgress, Progress: 100})
	m.emit(Event{Kind: EventCompleted, Digest: result.Digest, Progress: 100})
	m.finish(result, nil)
}

package uploader

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport 可编排失败次数的 Transport 测试替身
type fakeTransport struct {
	mu sync.Mutex

	receivedIndices []int
	failPlan        map[int]int // index -> 失败次数，递减到 0 后成功
	failAlways      map[int]bool
	sendDelay       time.Duration
	finalizeErr     error

	chunks        map[int][]byte
	sendTimes     map[int][]time.Time
	inflight      int
	peakInflight  int
	finalizeCalls int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failPlan:   map[int]int{},
		failAlways: map[int]bool{},
		chunks:     map[int][]byte{},
		sendTimes:  map[int][]time.Time{},
	}
}

func (f *fakeTransport) Init(ctx context.Context, filename string, totalSize int64, totalChunks int) (*dto.UploadInitResult, error) {
	received := f.receivedIndices
	if received == nil {
		received = []int{}
	}
	return &dto.UploadInitResult{
		SessionID:       42,
		Fingerprint:     "fp",
		Resumed:         len(received) > 0,
		ReceivedIndices: received,
		Message:         "ok",
	}, nil
}

func (f *fakeTransport) SendChunk(ctx context.Context, sessionID int64, index int, data []byte) error {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peakInflight {
		f.peakInflight = f.inflight
	}
	f.sendTimes[index] = append(f.sendTimes[index], time.Now())
	delay := f.sendDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--

	if f.failAlways[index] {
		return errors.New("send failed")
	}
	if f.failPlan[index] > 0 {
		f.failPlan[index]--
		return errors.New("send failed")
	}

	f.chunks[index] = append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) Finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error) {
	f.mu.Lock()
	f.finalizeCalls++
	f.mu.Unlock()

	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &dto.UploadFinalizeResult{
		SessionID: sessionID,
		Filename:  "data.bin",
		Digest:    "digest-42",
	}, nil
}

// collectEvents 持续消费事件直到通道关闭
func collectEvents(m *Manager) func() []Event {
	var mu sync.Mutex
	var events []Event
	done := make(chan struct{})
	go func() {
		for ev := range m.Events() {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
		close(done)
	}()
	return func() []Event {
		<-done
		mu.Lock()
		defer mu.Unlock()
		return events
	}
}

func newTestManager(t *testing.T, transport Transport, data []byte, cfg *Config) *Manager {
	t.Helper()
	m, err := NewManager(transport, "data.bin", bytes.NewReader(data), int64(len(data)), cfg, nil)
	require.NoError(t, err)
	return m
}

func TestManagerUploadsAllChunks(t *testing.T) {
	data := []byte("AAAABBBBC") // 3 chunks of size 4, 4, 1
	transport := newFakeTransport()
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 2, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.Equal(t, 3, m.TotalChunks())
	require.NoError(t, m.Start(context.Background()))

	result, err := m.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "digest-42", result.Digest)

	assert.Equal(t, []byte("AAAA"), transport.chunks[0])
	assert.Equal(t, []byte("BBBB"), transport.chunks[1])
	assert.Equal(t, []byte("C"), transport.chunks[2])
	assert.Equal(t, 1, transport.finalizeCalls)

	events := drain()
	var progress []int
	var completed int
	for _, ev := range events {
		switch ev.Kind {
		case EventProgress:
			progress = append(progress, ev.Progress)
		case EventCompleted:
			completed++
		}
	}
	assert.Equal(t, 1, completed)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	// 进度只会单调不减
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestManagerResumeSkipsReceived(t *testing.T) {
	data := []byte("AAAABBBBCCCC")
	transport := newFakeTransport()
	transport.receivedIndices = []int{0, 2}
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 2, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	_, err := m.Wait(context.Background())
	require.NoError(t, err)

	// 只有缺失的分片被传输
	assert.NotContains(t, transport.chunks, 0)
	assert.NotContains(t, transport.chunks, 2)
	assert.Equal(t, []byte("BBBB"), transport.chunks[1])

	var doneUpfront []int
	for _, ev := range drain() {
		if ev.Kind == EventChunkStatus && ev.State == ChunkDone {
			doneUpfront = append(doneUpfront, ev.ChunkIndex)
		}
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, doneUpfront)
}

func TestManagerRetryBackoff(t *testing.T) {
	data := []byte("AAAA")
	transport := newFakeTransport()
	transport.failPlan[0] = 2 // 失败两次后成功
	unit := 10 * time.Millisecond
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 1, BackoffUnit: unit})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	_, err := m.Wait(context.Background())
	require.NoError(t, err)
	drain()

	times := transport.sendTimes[0]
	require.Len(t, times, 3)

	// 延迟依次约为 2 和 4 个时间单位
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 2*unit)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 4*unit)
	assert.Equal(t, 1, transport.finalizeCalls)
}

func TestManagerPermanentFailureStalls(t *testing.T) {
	data := []byte("AAAABBBB")
	transport := newFakeTransport()
	transport.failAlways[1] = true
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 2, MaxRetries: 3, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	_, err := m.Wait(context.Background())
	require.ErrorIs(t, err, ErrStalled)

	// 初次尝试加 3 次重试，绝不再有第四次重试
	assert.Len(t, transport.sendTimes[1], 4)
	// 其它分片不受影响
	assert.Equal(t, []byte("AAAA"), transport.chunks[0])
	// 未到完成态，不触发 finalize
	assert.Equal(t, 0, transport.finalizeCalls)

	var failed []int
	for _, ev := range drain() {
		if ev.Kind == EventChunkStatus && ev.State == ChunkFailed {
			failed = append(failed, ev.ChunkIndex)
		}
	}
	assert.Equal(t, []int{1}, failed)
}

func TestManagerConcurrencyBound(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 40) // 10 chunks
	transport := newFakeTransport()
	transport.sendDelay = 10 * time.Millisecond
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 3, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	_, err := m.Wait(context.Background())
	require.NoError(t, err)
	drain()

	assert.LessOrEqual(t, transport.peakInflight, 3)
	assert.Equal(t, 1, transport.finalizeCalls)
}

func TestManagerFinalizeFailure(t *testing.T) {
	data := []byte("AAAA")
	transport := newFakeTransport()
	transport.finalizeErr = errors.New("assemble failed")
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 1, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	result, err := m.Wait(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)

	var finalizeFailed, completed int
	for _, ev := range drain() {
		switch ev.Kind {
		case EventFinalizeFailed:
			finalizeFailed++
		case EventCompleted:
			completed++
		}
	}
	assert.Equal(t, 1, finalizeFailed)
	assert.Equal(t, 0, completed)
}

func TestManagerAbort(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 20) // 5 chunks
	transport := newFakeTransport()
	transport.sendDelay = 30 * time.Millisecond
	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 1, BackoffUnit: time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	m.Abort()

	_, err := m.Wait(context.Background())
	require.ErrorIs(t, err, ErrAborted)
	drain()

	// 中止后不再派发新分片
	assert.Less(t, len(transport.chunks), 5)
	assert.Equal(t, 0, transport.finalizeCalls)
}

func TestManagerRetryStatePendingDuringBackoff(t *testing.T) {
	data := []byte("AAAA")
	transport := newFakeTransport()
	transport.failPlan[0] = 1

	m := newTestManager(t, transport, data, &Config{ChunkSize: 4, Concurrency: 1, BackoffUnit: 150 * time.Millisecond})
	drain := collectEvents(m)

	require.NoError(t, m.Start(context.Background()))

	// 失败后进入退避等待
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.waitingRetry == 1
	}, time.Second, 2*time.Millisecond)

	// 退避期间任务回到 PENDING，而不是停留在 UPLOADING
	m.mu.Lock()
	state := m.tasks[0].state
	m.mu.Unlock()
	assert.Equal(t, ChunkPending, state)

	result, err := m.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	drain()
}

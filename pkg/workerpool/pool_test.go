package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConcurrencyBound(t *testing.T) {
	p := New(&Config{MaxWorkers: 3, QueueSize: 64}, nil)
	defer p.Shutdown(context.Background())

	var active, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Submit(context.Background(), func(ctx context.Context) error {
				cur := active.Add(1)
				defer active.Add(-1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 活跃任务数不超过 worker 数
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolClosed)

	err = p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolClosed)
}

func TestPoolQueueFull(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	defer p.Shutdown(context.Background())

	block := make(chan struct{})
	// 占住唯一 worker
	require.NoError(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	}))
	time.Sleep(20 * time.Millisecond)

	// 填满队列
	_ = p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil })

	err := p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolFull)

	close(block)
}

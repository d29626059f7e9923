// Package safe_close 提供多个子任务的统一优雅关闭控制
package safe_close

import (
	"sync"
)

// SafeClose coordinates the shutdown of multiple background routines.
// Each routine attaches itself and receives a close signal channel plus
// a done callback it must call once it has fully stopped.
// SafeClose 协调多个后台协程的关闭：协程通过 Attach 挂载，
// 收到关闭信号后完成清理并调用 done 回调
type SafeClose struct {
	mu        sync.Mutex
	closed    bool
	closeErr  error
	closeChan chan struct{}
	wg        sync.WaitGroup
}

func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeChan: make(chan struct{}),
	}
}

// Attach starts f in its own goroutine. f must call done() after the
// close signal fires and its cleanup is finished.
// Attach 启动 f 协程，f 在收到关闭信号并完成清理后必须调用 done()
func (s *SafeClose) Attach(f func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var once sync.Once
	done := func() {
		once.Do(s.wg.Done)
	}
	go f(done, s.closeChan)
}

// SendCloseSignal signals every attached routine to stop. The first
// non-nil error wins; later calls are no-ops.
// SendCloseSignal 通知所有挂载协程退出，首个非 nil 错误保留
func (s *SafeClose) SendCloseSignal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.closeErr = err
	close(s.closeChan)
}

// CloseSignal returns the channel closed by SendCloseSignal
// CloseSignal 返回关闭信号通道
func (s *SafeClose) CloseSignal() <-chan struct{} {
	return s.closeChan
}

// WaitClosed blocks until every attached routine reported done, then
// returns the close error if any.
// WaitClosed 阻塞等待全部协程退出，返回关闭时记录的错误
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

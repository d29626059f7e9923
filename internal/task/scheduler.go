package task

import (
	"context"
	"time"

	"github.com/chunkvault/chunk-upload-service/pkg/safe_close"
	"go.uber.org/zap"
)

// Task 定义后台任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
	LoopInterval() time.Duration   // 执行间隔，<=0 表示只执行 IsStartupRun
	IsStartupRun() bool            // 是否启动时立即执行一次
}

// Scheduler runs registered tasks on their intervals and stops them
// with the service's close signal.
// Scheduler 按各自间隔运行注册的任务，并随服务关闭信号停止
type Scheduler struct {
	logger *zap.Logger
	tasks  []Task
	sc     *safe_close.SafeClose
}

// NewScheduler 创建任务调度器
func NewScheduler(logger *zap.Logger, sc *safe_close.SafeClose) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make([]Task, 0),
		sc:     sc,
	}
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start 启动所有任务
func (s *Scheduler) Start() {
	if len(s.tasks) == 0 {
		s.logger.Info("no tasks to schedule")
		return
	}

	s.logger.Info("tasks starting", zap.Int("count", len(s.tasks)))

	for _, task := range s.tasks {
		s.startTask(task)
	}
}

// runOnce executes a task run, recovering panics so one bad run never
// kills the scheduler goroutine
// runOnce 执行一轮任务，捕获 panic 以免单次失败带崩调度协程
func (s *Scheduler) runOnce(task Task, startupRun bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task run panic",
				zap.String("task", task.Name()),
				zap.Bool("startupRun", startupRun),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	s.logger.Info("task running",
		zap.String("task", task.Name()),
		zap.Bool("startupRun", startupRun))

	if err := task.Run(context.Background()); err != nil {
		s.logger.Error("task run error",
			zap.String("task", task.Name()),
			zap.Bool("startupRun", startupRun),
			zap.Error(err))
	}
}

// startTask 启动单个任务
func (s *Scheduler) startTask(task Task) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()

		if task.IsStartupRun() {
			go s.runOnce(task, true)
		}

		if task.LoopInterval() <= 0 {
			return
		}

		ticker := time.NewTicker(task.LoopInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(task, false)
			case <-closeSignal:
				s.logger.Info("task stopped", zap.String("task", task.Name()))
				return
			}
		}
	})
}

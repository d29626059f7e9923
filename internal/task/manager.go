package task

import (
	"github.com/chunkvault/chunk-upload-service/internal/app"
	"github.com/chunkvault/chunk-upload-service/pkg/safe_close"

	"go.uber.org/zap"
)

// Manager 任务管理器,负责创建和管理所有任务
type Manager struct {
	scheduler *Scheduler
	logger    *zap.Logger
	app       *app.App
}

// NewManager 创建任务管理器
func NewManager(logger *zap.Logger, sc *safe_close.SafeClose, appContainer *app.App) *Manager {
	return &Manager{
		scheduler: NewScheduler(logger, sc),
		logger:    logger,
		app:       appContainer,
	}
}

// RegisterTasks 注册所有任务
func (m *Manager) RegisterTasks() error {
	// 创建并添加过期会话清理任务
	cleanTask, err := NewSessionCleanTask(m.app)
	if err != nil {
		m.logger.Warn("failed to create session clean task", zap.Error(err))
		return err
	}

	if cleanTask != nil {
		m.scheduler.AddTask(cleanTask)
	} else {
		m.logger.Info("session clean task is disabled (session timeout not configured)")
	}

	// 未来可以在这里添加更多任务
	// otherTask := NewOtherTask()
	// m.scheduler.AddTask(otherTask)

	return nil
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}

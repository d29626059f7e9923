// Package upgrade 负责数据库结构的版本化升级
package upgrade

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	"gorm.io/gorm"
)

// SchemaVersion 数据库版本记录表
type SchemaVersion struct {
	ID          int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Version     string    `gorm:"not null;uniqueIndex;type:varchar(64)" json:"version"`
	Description string    `gorm:"type:text" json:"description"`
	AppliedAt   time.Time `gorm:"not null" json:"applied_at"`
}

// TableName 指定表名
func (SchemaVersion) TableName() string {
	return "schema_version"
}

// Migration 定义升级接口
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB, ctx context.Context) error
}

// referenceVersionFile 记录上一次运行版本的文件
const referenceVersionFile = "config/lastVersion"

// MigrationManager 升级管理器
type MigrationManager struct {
	db             *gorm.DB
	logger         *zap.Logger
	runningVersion string
	dbPath         string
	dbType         string
	migrations     []Migration
}

// NewMigrationManager 创建升级管理器
func NewMigrationManager(db *gorm.DB, logger *zap.Logger, runningVersion string, dbPath string, dbType string) *MigrationManager {
	return &MigrationManager{
		db:             db,
		logger:         logger,
		runningVersion: runningVersion,
		dbPath:         dbPath,
		dbType:         dbType,
		migrations: []Migration{
			// 在这里注册所有的升级脚本
			&SessionStatusNormalizeMigrate{logger: logger},
		},
	}
}

// Run 执行升级
func (m *MigrationManager) Run(ctx context.Context) error {
	m.logger.Info("Migration started")

	// 确保 schema_version 表存在
	if err := m.db.AutoMigrate(&SchemaVersion{}); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// 获取已应用的数据库版本
	appliedVersions, err := m.getAppliedVersions()
	if err != nil {
		return fmt.Errorf("failed to get applied versions: %w", err)
	}

	lastVersion := m.getReferenceVersion()
	// reference version 需要 "v" 前缀用于比较 (semver 库需要)
	if !strings.HasPrefix(lastVersion, "v") {
		lastVersion = "v" + lastVersion
	}

	if !semver.IsValid(lastVersion) {
		m.logger.Warn("reference version is not a valid semver, using v1.0.0", zap.String("lastVersion", lastVersion))
		lastVersion = "v1.0.0"
	}

	m.logger.Info("LastVersion", zap.String("lastVersion", lastVersion))

	runningVersion := m.runningVersion
	if !strings.HasPrefix(runningVersion, "v") {
		runningVersion = "v" + runningVersion
	}

	// 当前版本没有比上一次运行的版本更新时跳过升级检查，
	// 避免每次重启都进行不必要的数据库查询
	if semver.Compare(runningVersion, lastVersion) <= 0 {
		m.logger.Info("skipping upgrade", zap.String("runningVersion", runningVersion), zap.String("lastVersion", lastVersion))
		return nil
	}

	// 执行所有未执行的升级
	executed := 0
	for _, migration := range m.migrations {
		scriptVersion := migration.Version()

		currentScriptVersion := scriptVersion
		if !strings.HasPrefix(currentScriptVersion, "v") {
			currentScriptVersion = "v" + currentScriptVersion
		}

		// 比较版本: 如果 migration.Version <= lastVersion, 则跳过
		if semver.IsValid(lastVersion) && semver.IsValid(currentScriptVersion) {
			if semver.Compare(currentScriptVersion, lastVersion) <= 0 {
				m.logger.Info("skip migration <= lastVersion",
					zap.String("scriptVersion", scriptVersion),
					zap.String("lastVersion", lastVersion))
				continue
			}
		}

		// 检查是否已应用
		if appliedVersions[scriptVersion] {
			continue
		}

		m.logger.Info("applying migration",
			zap.String("scriptVersion", migration.Version()),
			zap.String("desc", migration.Description()))

		// 在事务中执行升级
		if err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx, ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			// 记录版本
			record := &SchemaVersion{
				Version:     migration.Version(),
				Description: migration.Description(),
				AppliedAt:   time.Now(),
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to record version: %w", err)
			}

			return nil
		}); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version(), err)
		}

		m.logger.Info("migration applied successfully", zap.String("scriptVersion", migration.Version()))
		executed++
	}

	if executed == 0 {
		m.logger.Info("database is already up to date")
	} else {
		m.logger.Info("upgrade completed", zap.Int("migrations_applied", executed))
	}

	// 无论是否执行了升级，最后将当前版本写入基准文件
	if err := m.saveReferenceVersion(m.runningVersion); err != nil {
		m.logger.Error("save lastVersion failed", zap.Error(err))
		// 记录错误但不阻断启动
	} else {
		m.logger.Info("save lastVersion success", zap.String("ver", m.runningVersion))
	}

	return nil
}

// getAppliedVersions 获取已应用的数据库版本
func (m *MigrationManager) getAppliedVersions() (map[string]bool, error) {
	var versions []SchemaVersion
	err := m.db.Find(&versions).Error
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	for _, v := range versions {
		applied[v.Version] = true
	}
	return applied, nil
}

// getReferenceVersion 获取参考版本号
// 从基准文件读取，如果文件不存在或为空则返回 v1.0.0
func (m *MigrationManager) getReferenceVersion() string {
	content, err := os.ReadFile(referenceVersionFile)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read lastVersion failed", zap.Error(err))
		} else {
			m.logger.Info("lastVersion not found, default v1.0.0")
		}
		return "v1.0.0"
	}

	ver := strings.TrimSpace(string(content))

	if ver == "" {
		m.logger.Info("lastVersion empty, default v1.0.0")
		return "v1.0.0"
	}
	return ver
}

// saveReferenceVersion 保存当前版本号到基准文件
func (m *MigrationManager) saveReferenceVersion(version string) error {
	return os.WriteFile(referenceVersionFile, []byte(version), 0644)
}

// Execute 执行升级(便捷方法)
func Execute(db *gorm.DB, logger *zap.Logger, runningVersion string, dbPath string, dbType string) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if logger == nil {
		return fmt.Errorf("logger not initialized")
	}

	ctx := context.Background()

	manager := NewMigrationManager(db, logger, runningVersion, dbPath, dbType)
	return manager.Run(ctx)
}

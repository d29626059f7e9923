package model

import (
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB, key string) error {
	switch key {

	case "UploadSession":
		return db.AutoMigrate(UploadSession{})

	case "UploadChunk":
		return db.AutoMigrate(UploadChunk{})
	}
	return nil
}

// AutoMigrateAll migrates every table of the upload schema
// AutoMigrateAll 迁移上传模块的全部表
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"UploadSession", "UploadChunk"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}

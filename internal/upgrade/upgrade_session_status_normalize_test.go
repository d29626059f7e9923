package upgrade

import (
	"context"
	"testing"

	"github.com/chunkvault/chunk-upload-service/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSessionStatusNormalizeMigrate_Up(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.AutoMigrate(&model.UploadSession{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	sessions := []model.UploadSession{
		{Fingerprint: "fp-1", Filename: "a.bin", TotalSize: 10, TotalChunks: 1, Status: "uploading"},
		{Fingerprint: "fp-2", Filename: "b.bin", TotalSize: 10, TotalChunks: 1, Status: "completed"},
		{Fingerprint: "fp-3", Filename: "c.bin", TotalSize: 10, TotalChunks: 1, Status: "UPLOADING"},
	}
	for i := range sessions {
		if err := db.Create(&sessions[i]).Error; err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
	}

	migrate := &SessionStatusNormalizeMigrate{logger: zap.NewNop()}
	if err := migrate.Up(db, context.Background()); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	tests := []struct {
		fingerprint string
		want        string
	}{
		{"fp-1", "UPLOADING"},
		{"fp-2", "COMPLETED"},
		{"fp-3", "UPLOADING"},
	}

	for _, tt := range tests {
		var got model.UploadSession
		if err := db.Where("fingerprint = ?", tt.fingerprint).First(&got).Error; err != nil {
			t.Fatalf("failed to load session %s: %v", tt.fingerprint, err)
		}
		if got.Status != tt.want {
			t.Errorf("session %s status=%q, want %q", tt.fingerprint, got.Status, tt.want)
		}
	}
}

// Package dbtest 为测试提供独立的 SQLite 数据库
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"fittrack/internal/config"
	"fittrack/internal/infrastructure/database"
	"fittrack/pkg/logger"

	"gorm.io/gorm"
)

// New 在 t.TempDir() 中创建已迁移的数据库，测试结束时关闭连接
func New(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.Open(cfg, logger.NewDiscard())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

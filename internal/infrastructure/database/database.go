package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/model"
	"fittrack/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open 按配置打开数据库连接
// mysql 用于生产；sqlite 用于本地运行和测试，单连接串行写入
func Open(cfg *config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log.Component("gorm"), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	// 连接池配置
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Component("database").WithField("driver", cfg.Driver).Info("database connected")
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.MySQLDSN()), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLiteDSN 打开外键约束，并在锁冲突时等待而不是立即失败
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

// Models 所有需要建表的模型
func Models() []interface{} {
	return []interface{}{
		&model.Role{},
		&model.User{},
		&model.CreditTransaction{},
		&model.ExerciseType{},
		&model.Exercise{},
		&model.SessionType{},
		&model.Session{},
		&model.SessionExercise{},
	}
}

// AutoMigrate 自动迁移表结构并写入内置角色
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return SeedRoles(ctx, db)
}

// SeedRoles 幂等写入 admin / user 两个角色
func SeedRoles(ctx context.Context, db *gorm.DB) error {
	roles := []model.Role{{Name: model.RoleAdmin}, {Name: model.RoleUser}}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&roles).Error
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

// Package migrate 使用 golang-migrate 执行内嵌的 MySQL 版本化迁移
package migrate

import (
	"embed"
	"errors"
	"fmt"

	"fittrack/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// ErrNoChange 已经是目标版本
var ErrNoChange = migrate.ErrNoChange

// URL 拼接 golang-migrate 的 mysql 连接地址，迁移文件包含多条语句
func URL(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

// Run 按方向执行迁移，direction 只能是 up 或 down
func Run(cfg config.DatabaseConfig, direction string) error {
	if cfg.Driver != "mysql" {
		return fmt.Errorf("versioned migrations target mysql, got driver %q", cfg.Driver)
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	source, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, URL(cfg))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

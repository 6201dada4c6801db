// migrate 执行内嵌的 MySQL 版本化迁移：go run ./cmd/migrate -direction up
package main

import (
	"flag"

	"fittrack/internal/config"
	"fittrack/internal/infrastructure/database/migrate"
	"fittrack/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format).Component("migrate")

	if err := migrate.Run(cfg.Database, *direction); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.WithField("direction", *direction).Info("migrations applied")
}

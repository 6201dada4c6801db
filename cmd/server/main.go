package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fittrack/internal/config"
	"fittrack/internal/handler"
	"fittrack/internal/infrastructure/database"
	"fittrack/internal/infrastructure/media"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/job"
	"fittrack/internal/service"
	"fittrack/pkg/idgen"
	"fittrack/pkg/logger"
	"fittrack/pkg/password"
	"fittrack/pkg/token"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	entry := log.Component("server")

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		entry.WithError(err).Fatal("init id generator")
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		entry.WithError(err).Fatal("open database")
	}
	if err := database.AutoMigrate(context.Background(), db); err != nil {
		entry.WithError(err).Fatal("migrate database")
	}

	store, err := media.NewLocalStore(cfg.Media, log)
	if err != nil {
		entry.WithError(err).Fatal("init media store")
	}

	m := metrics.New()
	hasher := password.NewHasher(cfg.Auth.BcryptCost)
	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ledger := service.NewLedgerService(db, m, log)
	h := handler.NewHandler(handler.Services{
		Auth:          service.NewAuthService(db, hasher, tokens, log),
		Users:         service.NewUserService(db, hasher, log),
		Ledger:        ledger,
		Ordering:      service.NewOrderingService(db, m, log),
		Sessions:      service.NewSessionService(db, log),
		Exercises:     service.NewExerciseService(db, store, log),
		ExerciseTypes: service.NewExerciseTypeService(db),
		SessionTypes:  service.NewSessionTypeService(db),
	}, log)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台对账任务
	auditJob := job.NewLedgerAuditJob(ledger, cfg.Ledger, m, log)
	go auditJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(h, handler.RouterOptions{
		Server:    cfg.Server,
		UploadDir: store.Dir(),
		Metrics:   m,
		Logger:    log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		entry.WithField("port", cfg.Server.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.WithError(err).Fatal("server failed")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	entry.Info("shutting down")

	// 取消上下文，停止后台任务
	cancel()
	auditJob.Stop()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Error("server shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	entry.Info("server stopped")
}

package handler

import (
	"fittrack/internal/config"
	"fittrack/internal/infrastructure/metrics"
	"fittrack/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RouterOptions 路由层需要的基础设施
type RouterOptions struct {
	Server    config.ServerConfig
	UploadDir string
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// SetupRouter 配置路由
func SetupRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.Server.Mode != "" {
		gin.SetMode(opts.Server.Mode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(RecoveryMiddleware(opts.Logger))
	r.Use(LoggerMiddleware(opts.Logger))
	r.Use(MetricsMiddleware(opts.Metrics))
	r.Use(CORSMiddleware(opts.Server.CORSOrigins))

	r.GET("/health", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	auth := h.AuthRequired()
	admin := RequireAdmin()

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/me", auth, h.Me)
	}

	users := r.Group("/users", auth)
	{
		users.GET("", admin, h.ListUsers)
		users.GET("/me", h.GetMe)
		users.GET("/:id", admin, h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
		users.PATCH("/:id/role", admin, h.SetUserRole)
		users.DELETE("/:id", h.DeleteUser)

		// 积分
		users.GET("/:id/credits", h.GetCredits)
		users.GET("/:id/credits/transactions", h.ListCreditTransactions)
		users.POST("/:id/credits/adjust", admin, h.AdjustCredits)
		users.GET("/:id/credits/verify", admin, h.VerifyCredits)
	}

	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("", auth, h.CreateSession)
		sessions.PUT("/:id", auth, h.UpdateSession)
		sessions.DELETE("/:id", auth, h.DeleteSession)

		sessions.POST("/:id/exercises", auth, h.AddEntry)
		sessions.PUT("/:id/exercises/:entryId", auth, h.UpdateEntry)
		sessions.DELETE("/:id/exercises/:entryId", auth, h.DeleteEntry)

		// 排序
		sessions.PUT("/:id/exercises/reorder", auth, h.ReorderEntries)
		sessions.PUT("/exercises/reorder-map/:id", auth, h.ReorderEntriesByMap)
		sessions.PATCH("/:id/exercises/:entryId/move", auth, h.MoveEntry)
		sessions.POST("/:id/exercises/compact", auth, h.CompactEntries)
	}

	exercises := r.Group("/exercises")
	{
		exercises.GET("", h.ListExercises)
		exercises.GET("/:id", h.GetExercise)
		exercises.POST("", auth, admin, h.CreateExercise)
		exercises.PUT("/:id", auth, admin, h.UpdateExercise)
		exercises.DELETE("/:id", auth, admin, h.DeleteExercise)
	}

	for prefix, svc := range map[string]typeRoutes{
		"/exercise-types": {h: h, svc: h.exerciseTypes},
		"/session-types":  {h: h, svc: h.sessionTypes},
	} {
		g := r.Group(prefix)
		g.GET("", svc.list)
		g.GET("/:id", svc.get)
		g.POST("", auth, svc.create)
		g.PUT("/:id", auth, svc.update)
		g.DELETE("/:id", auth, svc.remove)
	}

	return r
}

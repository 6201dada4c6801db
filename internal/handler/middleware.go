package handler

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/service"
	"fittrack/pkg/logger"
	"fittrack/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const actorKey = "actor"

// LoggerMiddleware 日志中间件
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	entry := log.Component("access")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		c.Next()

		fields := logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"ip":      c.ClientIP(),
			"method":  c.Request.Method,
			"path":    path,
		}
		if actor, ok := c.Get(actorKey); ok {
			fields["user_id"] = actor.(service.Actor).UserID
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.WithFields(fields).Warn("request")
			return
		}
		entry.WithFields(fields).Info("request")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	entry := log.Component("recovery")
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				entry.WithFields(logrus.Fields{
					"panic": err,
					"path":  c.Request.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("panic recovered")
				response.ServerError(c)
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件，origins 为空时放行所有来源
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; len(allowed) > 0 && !ok {
				if c.Request.Method == http.MethodOptions {
					c.AbortWithStatus(http.StatusForbidden)
					return
				}
				c.Next()
				return
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// MetricsMiddleware 以路由模板为标签记录请求数和耗时
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// AuthRequired 校验 Bearer 令牌并把调用方放进上下文
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			response.Unauthorized(c, response.CodeNoToken)
			return
		}

		actor, err := h.auth.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			response.Unauthorized(c, response.CodeInvalidToken)
			return
		}
		c.Set(actorKey, *actor)
		c.Next()
	}
}

// RequireAdmin 必须在 AuthRequired 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFrom(c).Role != model.RoleAdmin {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}
	}
	return v.(service.Actor)
}

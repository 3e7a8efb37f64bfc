// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"time"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/realtime"
	"ops-notifications/internal/notification/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NotificationService is implemented by *service.Service.
type NotificationService interface {
	SendNotification(ctx context.Context, recipients []models.Recipient, data models.NotificationData) (*service.SendResult, error)
	SendBulkNotification(ctx context.Context, tenantID string, data models.NotificationData, filter models.RecipientFilter) (*service.SendResult, error)
	SendTemplateNotification(ctx context.Context, templateID string, recipients []models.Recipient, variables map[string]interface{}) (*service.SendResult, error)
	GetUserNotifications(ctx context.Context, scope models.Scope, opts models.ListOptions) ([]models.Notification, error)
	GetNotificationStats(ctx context.Context, scope models.Scope) (models.Stats, error)
	MarkAsRead(ctx context.Context, id string, scope models.Scope) (int64, error)
	MarkAllAsRead(ctx context.Context, scope models.Scope) (int64, error)
	DeleteNotification(ctx context.Context, id string, scope models.Scope) (int64, error)
	GetDeliveryAttempts(ctx context.Context, notificationID string, scope models.Scope) ([]models.DeliveryAttempt, error)
	GetFailedDeliveries(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.DeliveryAttempt, error)
}

// ReadinessCheck is probed by /ready; any error marks the instance not ready.
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	Service       NotificationService
	Hub           *realtime.Hub
	JWTSecret     string
	AllowedOrigin string
	Readiness     map[string]ReadinessCheck
	Logger        logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	h := &Handler{
		svc:       cfg.Service,
		hub:       cfg.Hub,
		readiness: cfg.Readiness,
		logger:    cfg.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
	if cfg.Hub != nil {
		upgrader := realtime.NewUpgrader(cfg.AllowedOrigin)
		h.upgrader = &upgrader
	}

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := JWTAuth(cfg.JWTSecret)
	router.GET("/ws", auth, h.ServeWebsocket)

	v1 := router.Group("/api/v1/notifications", auth)
	{
		v1.GET("", h.ListNotifications)
		v1.GET("/stats", h.GetStats)
		v1.PUT("/read-all", h.MarkAllAsRead)
		v1.PUT("/:id/read", h.MarkAsRead)
		v1.DELETE("/:id", h.DeleteNotification)
		v1.GET("/:id/deliveries", h.ListDeliveries)

		internal := v1.Group("", RequireRole(RoleService, RoleAdmin))
		internal.GET("/deliveries/failed", h.ListFailedDeliveries)
		internal.POST("/send", h.Send)
		internal.POST("/send-bulk", h.SendBulk)
		internal.POST("/send-template", h.SendTemplate)
	}

	return router
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request failed", fields)
			return
		}
		log.Debug("request served", fields)
	}
}

// internal/api/handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/validation"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const defaultFailedWindow = 24 * time.Hour

type Handler struct {
	svc       NotificationService
	hub       *realtime.Hub
	upgrader  *websocket.Upgrader
	readiness map[string]ReadinessCheck
	logger    logger.Logger
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) Ready(c *gin.Context) {
	checks := make(map[string]string, len(h.readiness))
	ready := true
	for name, check := range h.readiness {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) ServeWebsocket(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime disabled"})
		return
	}
	scope := ScopeFrom(c)
	if err := h.hub.Serve(h.upgrader, c.Writer, c.Request, scope.UserID); err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{
			"userId": scope.UserID,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) ListNotifications(c *gin.Context) {
	opts, err := parseListOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}

	items, err := h.svc.GetUserNotifications(c.Request.Context(), ScopeFrom(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	opts = opts.WithDefaults()
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"limit":         opts.Limit,
		"offset":        opts.Offset,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.svc.GetNotificationStats(c.Request.Context(), ScopeFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MarkAsRead answers 200 with affected 0 for foreign or already-read ids.
func (h *Handler) MarkAsRead(c *gin.Context) {
	n, err := h.svc.MarkAsRead(c.Request.Context(), c.Param("id"), ScopeFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (h *Handler) MarkAllAsRead(c *gin.Context) {
	n, err := h.svc.MarkAllAsRead(c.Request.Context(), ScopeFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	n, err := h.svc.DeleteNotification(c.Request.Context(), c.Param("id"), ScopeFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

func (h *Handler) ListDeliveries(c *gin.Context) {
	attempts, err := h.svc.GetDeliveryAttempts(c.Request.Context(), c.Param("id"), ScopeFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": attempts})
}

func (h *Handler) ListFailedDeliveries(c *gin.Context) {
	since := time.Now().UTC().Add(-defaultFailedWindow)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, apperrors.NewValidationError("since must be RFC3339"))
			return
		}
		since = t
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}

	attempts, err := h.svc.GetFailedDeliveries(c.Request.Context(), ScopeFrom(c).TenantID, since, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if attempts == nil {
		attempts = []models.DeliveryAttempt{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": attempts, "since": since})
}

type sendRequest struct {
	Recipients []models.Recipient      `json:"recipients"`
	Data       models.NotificationData `json:"data"`
}

func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if !bindValidated(c, validation.SendNotificationInput, &req) {
		return
	}
	if !h.sameTenant(c, recipientTenants(req.Recipients)...) {
		return
	}

	result, err := h.svc.SendNotification(c.Request.Context(), req.Recipients, req.Data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type sendBulkRequest struct {
	TenantID string                  `json:"tenantId"`
	Data     models.NotificationData `json:"data"`
	Filters  models.RecipientFilter  `json:"filters"`
}

func (h *Handler) SendBulk(c *gin.Context) {
	var req sendBulkRequest
	if !bindValidated(c, validation.SendBulkNotificationInput, &req) {
		return
	}
	if !h.sameTenant(c, req.TenantID) {
		return
	}

	result, err := h.svc.SendBulkNotification(c.Request.Context(), req.TenantID, req.Data, req.Filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type sendTemplateRequest struct {
	TemplateID string                 `json:"templateId"`
	Recipients []models.Recipient     `json:"recipients"`
	Variables  map[string]interface{} `json:"variables"`
}

func (h *Handler) SendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if !bindValidated(c, validation.SendTemplateNotificationInput, &req) {
		return
	}
	if !h.sameTenant(c, recipientTenants(req.Recipients)...) {
		return
	}

	result, err := h.svc.SendTemplateNotification(c.Request.Context(), req.TemplateID, req.Recipients, req.Variables)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// sameTenant keeps service tokens inside their own tenant; admins may target any tenant.
func (h *Handler) sameTenant(c *gin.Context, tenantIDs ...string) bool {
	if c.GetString(ctxRole) == RoleAdmin {
		return true
	}
	own := ScopeFrom(c).TenantID
	for _, id := range tenantIDs {
		if id != own {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "FORBIDDEN",
				"message": fmt.Sprintf("tenant %q is outside the caller's scope", id),
			})
			return false
		}
	}
	return true
}

func recipientTenants(recipients []models.Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r.TenantID)
	}
	return out
}

// bindValidated checks the raw body against the schema shared with the Zeebe workers.
func bindValidated(c *gin.Context, schema *validation.Schema, dst interface{}) bool {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, apperrors.NewParseError(err))
		return false
	}
	if err := schema.Check(string(body)); err != nil {
		writeError(c, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(c, apperrors.NewParseError(err))
		return false
	}
	return true
}

func parseListOptions(c *gin.Context) (models.ListOptions, error) {
	var opts models.ListOptions

	switch status := models.Status(c.Query("status")); status {
	case "", models.StatusAll, models.StatusRead, models.StatusUnread:
		opts.Status = status
	default:
		return opts, apperrors.NewValidationError("status must be one of unread, read, all")
	}

	switch c.Query("order") {
	case "", "asc":
	case "desc":
		opts.NewestFirst = true
	default:
		return opts, apperrors.NewValidationError("order must be asc or desc")
	}

	var err error
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError(key + " must be a non-negative integer")
	}
	return v, nil
}

func writeError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	c.AbortWithStatusJSON(statusFor(stdErr.Code), gin.H{
		"error":   string(stdErr.Code),
		"message": stdErr.Message,
		"details": stdErr.Details,
	})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeParseError:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotificationNotFound, apperrors.ErrCodeTemplateNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

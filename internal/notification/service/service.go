// Package service is the notification fan-out orchestrator and its read side.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/metrics"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/channels"
	"ops-notifications/internal/notification/store"
	"ops-notifications/internal/notification/template"
)

// Store is the persistence the orchestrator needs; *store.Store implements it.
type Store interface {
	Create(ctx context.Context, n models.Notification) (*models.Notification, error)
	Get(ctx context.Context, id string, scope models.Scope) (*models.Notification, error)
	MarkRead(ctx context.Context, id string, scope models.Scope) (int64, error)
	MarkAllRead(ctx context.Context, scope models.Scope) (int64, error)
	Delete(ctx context.Context, id string, scope models.Scope) (int64, error)
	List(ctx context.Context, scope models.Scope, opts models.ListOptions) ([]models.Notification, error)
	Stats(ctx context.Context, scope models.Scope) (models.Stats, error)
	FindRecipients(ctx context.Context, tenantID string, filter models.RecipientFilter) ([]string, error)
	RecordAttempt(ctx context.Context, a models.DeliveryAttempt) (*models.DeliveryAttempt, error)
	ListAttempts(ctx context.Context, notificationID string, scope models.Scope) ([]models.DeliveryAttempt, error)
	ListFailedAttempts(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.DeliveryAttempt, error)
}

// DefaultBulkChannels is used when none are configured. Push is never auto-selected.
var DefaultBulkChannels = []models.Channel{models.ChannelInApp, models.ChannelEmail}

type Dependencies struct {
	Store        Store
	Templates    store.TemplateSource
	Dispatchers  []channels.Dispatcher
	BulkChannels []models.Channel
	Logger       logger.Logger
}

type Service struct {
	store        Store
	templates    store.TemplateSource
	dispatchers  map[models.Channel]channels.Dispatcher
	bulkChannels []models.Channel
	logger       logger.Logger
	now          func() time.Time
}

func New(deps Dependencies) *Service {
	dispatchers := make(map[models.Channel]channels.Dispatcher, len(deps.Dispatchers))
	for _, d := range deps.Dispatchers {
		dispatchers[d.Channel()] = d
	}

	bulk := deps.BulkChannels
	if len(bulk) == 0 {
		bulk = DefaultBulkChannels
	}

	templates := deps.Templates
	if templates == nil {
		if ts, ok := deps.Store.(store.TemplateSource); ok {
			templates = ts
		}
	}

	return &Service{
		store:        deps.Store,
		templates:    templates,
		dispatchers:  dispatchers,
		bulkChannels: bulk,
		logger:       deps.Logger.WithFields(map[string]interface{}{"component": "notification_service"}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SendResult lists the persisted ids in recipient order and every channel outcome.
type SendResult struct {
	NotificationIDs []string                 `json:"notificationIds"`
	Deliveries      []models.DeliveryAttempt `json:"deliveries"`
	SentAt          time.Time                `json:"sentAt"`
}

// SendNotification persists one row per recipient and dispatches the requested channels,
// strictly one recipient after another. A persistence failure aborts the rest of the
// batch; channel failures are recorded and never returned.
func (s *Service) SendNotification(ctx context.Context, recipients []models.Recipient, data models.NotificationData) (*SendResult, error) {
	start := time.Now()
	result, err := s.send(ctx, recipients, data)
	s.observe("send", start, err)
	return result, err
}

func (s *Service) send(ctx context.Context, recipients []models.Recipient, data models.NotificationData) (*SendResult, error) {
	data, err := normalizeData(data)
	if err != nil {
		return nil, err
	}
	if err := validateRecipients(recipients); err != nil {
		return nil, err
	}

	result := &SendResult{
		NotificationIDs: make([]string, 0, len(recipients)),
		Deliveries:      make([]models.DeliveryAttempt, 0),
	}

	for i, r := range recipients {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewTimeoutError("send_notification", err)
		}

		n, err := s.store.Create(ctx, models.Notification{
			TenantID:  r.TenantID,
			UserID:    r.UserID,
			Title:     data.Title,
			Message:   data.Message,
			Type:      data.Type,
			Category:  data.Category,
			Priority:  data.Priority,
			Metadata:  data.Metadata,
			ActionURL: data.ActionURL,
		})
		if err != nil {
			s.logger.Error("failed to persist notification, aborting batch", map[string]interface{}{
				"tenantId":   r.TenantID,
				"userId":     r.UserID,
				"index":      i,
				"recipients": len(recipients),
				"error":      err,
			})
			if _, ok := apperrors.AsStandard(err); !ok {
				err = apperrors.NewPersistenceError("create", err)
			}
			return nil, err
		}
		metrics.NotificationsCreated.WithLabelValues(n.Category).Inc()
		result.NotificationIDs = append(result.NotificationIDs, n.ID)

		for _, ch := range models.AllChannels {
			if !r.Wants(ch) {
				continue
			}
			result.Deliveries = append(result.Deliveries, s.dispatch(ctx, ch, n))
		}

		s.logger.Info("notification sent", map[string]interface{}{
			"notificationId": n.ID,
			"tenantId":       n.TenantID,
			"userId":         n.UserID,
			"channels":       r.Channels,
		})
	}

	result.SentAt = s.now()
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, ch models.Channel, n *models.Notification) models.DeliveryAttempt {
	var res models.DeliveryResult
	if d, ok := s.dispatchers[ch]; ok {
		res = s.safeDispatch(ctx, d, n)
	} else {
		s.logger.Warn("channel not configured, skipping delivery", map[string]interface{}{
			"channel":        string(ch),
			"notificationId": n.ID,
		})
		res = models.DeliveryResult{Channel: ch, Status: models.DeliverySkipped, Detail: "channel not configured"}
	}
	metrics.NotificationDeliveries.WithLabelValues(string(ch), string(res.Status)).Inc()

	attempt := models.DeliveryAttempt{
		NotificationID: n.ID,
		TenantID:       n.TenantID,
		UserID:         n.UserID,
		Channel:        ch,
		Status:         res.Status,
		Detail:         res.Detail,
		AttemptedAt:    s.now(),
	}
	recorded, err := s.store.RecordAttempt(ctx, attempt)
	if err != nil {
		s.logger.Error("failed to record delivery attempt", map[string]interface{}{
			"notificationId": n.ID,
			"channel":        string(ch),
			"status":         string(res.Status),
			"error":          err,
		})
		return attempt
	}
	return *recorded
}

// safeDispatch turns a panicking dispatcher into a failed result so the remaining
// channels and recipients still run.
func (s *Service) safeDispatch(ctx context.Context, d channels.Dispatcher, n *models.Notification) (res models.DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatcher panicked", map[string]interface{}{
				"channel":        string(d.Channel()),
				"notificationId": n.ID,
				"panic":          fmt.Sprint(r),
			})
			res = models.DeliveryResult{Channel: d.Channel(), Status: models.DeliveryFailed, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return d.Dispatch(ctx, n)
}

// SendBulkNotification resolves the tenant's users matching filter and sends to each over
// the configured bulk channels.
func (s *Service) SendBulkNotification(ctx context.Context, tenantID string, data models.NotificationData, filter models.RecipientFilter) (*SendResult, error) {
	start := time.Now()
	result, err := s.sendBulk(ctx, tenantID, data, filter)
	s.observe("send_bulk", start, err)
	return result, err
}

func (s *Service) sendBulk(ctx context.Context, tenantID string, data models.NotificationData, filter models.RecipientFilter) (*SendResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.NewValidationError("tenantId is required")
	}

	userIDs, err := s.store.FindRecipients(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		s.logger.Warn("bulk send matched no recipients", map[string]interface{}{
			"tenantId": tenantID,
			"filter":   filter,
		})
		return &SendResult{NotificationIDs: []string{}, Deliveries: []models.DeliveryAttempt{}, SentAt: s.now()}, nil
	}

	recipients := make([]models.Recipient, 0, len(userIDs))
	for _, id := range userIDs {
		recipients = append(recipients, models.Recipient{
			UserID:   id,
			TenantID: tenantID,
			Channels: append([]models.Channel(nil), s.bulkChannels...),
		})
	}
	return s.send(ctx, recipients, data)
}

// SendTemplateNotification renders the template with variables, merges variables over
// the template's default metadata (caller keys win) and sends.
func (s *Service) SendTemplateNotification(ctx context.Context, templateID string, recipients []models.Recipient, variables map[string]interface{}) (*SendResult, error) {
	start := time.Now()
	result, err := s.sendTemplate(ctx, templateID, recipients, variables)
	s.observe("send_template", start, err)
	return result, err
}

func (s *Service) sendTemplate(ctx context.Context, templateID string, recipients []models.Recipient, variables map[string]interface{}) (*SendResult, error) {
	if s.templates == nil {
		return nil, apperrors.NewTemplateNotFoundError(templateID)
	}

	tmpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]interface{}, len(tmpl.Metadata)+len(variables))
	for k, v := range tmpl.Metadata {
		metadata[k] = v
	}
	for k, v := range variables {
		metadata[k] = v
	}

	data := models.NotificationData{
		Title:     template.Render(tmpl.Title, variables),
		Message:   template.Render(tmpl.Message, variables),
		Type:      tmpl.Type,
		Category:  tmpl.Category,
		Priority:  tmpl.Priority,
		Metadata:  metadata,
		ActionURL: template.Render(tmpl.ActionURL, variables),
	}
	return s.send(ctx, recipients, data)
}

func (s *Service) observe(operation string, start time.Time, err error) {
	metrics.NotificationSendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		code := string(apperrors.ErrCodeInternal)
		if stdErr, ok := apperrors.AsStandard(err); ok {
			code = string(stdErr.Code)
		}
		metrics.NotificationSendFailures.WithLabelValues(operation, code).Inc()
	}
}

func normalizeData(data models.NotificationData) (models.NotificationData, error) {
	var problems []string
	if strings.TrimSpace(data.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(data.Message) == "" {
		problems = append(problems, "message is required")
	}
	if data.Type == "" {
		data.Type = models.TypeInfo
	} else if !data.Type.Valid() {
		problems = append(problems, fmt.Sprintf("invalid type %q", data.Type))
	}
	if data.Priority == "" {
		data.Priority = models.PriorityMedium
	} else if !data.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("invalid priority %q", data.Priority))
	}
	if len(problems) > 0 {
		return data, apperrors.NewValidationError(strings.Join(problems, "; "))
	}
	return data, nil
}

func validateRecipients(recipients []models.Recipient) error {
	if len(recipients) == 0 {
		return apperrors.NewValidationError("at least one recipient is required")
	}
	for i, r := range recipients {
		if r.UserID == "" || r.TenantID == "" {
			return apperrors.NewValidationError(fmt.Sprintf("recipient %d: userId and tenantId are required", i))
		}
		for _, ch := range r.Channels {
			if !ch.Valid() {
				return apperrors.NewValidationError(fmt.Sprintf("recipient %d: unknown channel %q", i, ch))
			}
		}
	}
	return nil
}

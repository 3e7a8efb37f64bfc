// internal/notification/service/query.go
package service

import (
	"context"
	"time"

	"ops-notifications/internal/models"
)

func (s *Service) GetUserNotifications(ctx context.Context, scope models.Scope, opts models.ListOptions) ([]models.Notification, error) {
	return s.store.List(ctx, scope, opts.WithDefaults())
}

func (s *Service) GetNotificationStats(ctx context.Context, scope models.Scope) (models.Stats, error) {
	return s.store.Stats(ctx, scope)
}

// MarkAsRead reports zero both for a foreign id and for an already-read row.
func (s *Service) MarkAsRead(ctx context.Context, id string, scope models.Scope) (int64, error) {
	return s.store.MarkRead(ctx, id, scope)
}

func (s *Service) MarkAllAsRead(ctx context.Context, scope models.Scope) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, scope)
	if err == nil && n > 0 {
		s.logger.Debug("marked notifications read", map[string]interface{}{
			"tenantId": scope.TenantID,
			"userId":   scope.UserID,
			"count":    n,
		})
	}
	return n, err
}

func (s *Service) DeleteNotification(ctx context.Context, id string, scope models.Scope) (int64, error) {
	return s.store.Delete(ctx, id, scope)
}

// GetDeliveryAttempts returns NOTIFICATION_NOT_FOUND for ids outside the caller's scope.
func (s *Service) GetDeliveryAttempts(ctx context.Context, notificationID string, scope models.Scope) ([]models.DeliveryAttempt, error) {
	if _, err := s.store.Get(ctx, notificationID, scope); err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, notificationID, scope)
}

// GetFailedDeliveries is the feed for an external redelivery job.
func (s *Service) GetFailedDeliveries(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.DeliveryAttempt, error) {
	return s.store.ListFailedAttempts(ctx, tenantID, since, limit)
}

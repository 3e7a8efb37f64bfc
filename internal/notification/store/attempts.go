// internal/notification/store/attempts.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/models"
)

const attemptColumns = `id, notification_id, tenant_id, user_id, channel, status, detail, attempted_at`

// RecordAttempt appends one channel outcome to the delivery log.
func (s *Store) RecordAttempt(ctx context.Context, a models.DeliveryAttempt) (*models.DeliveryAttempt, error) {
	if a.ID == "" {
		a.ID = s.newID()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_delivery_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.NotificationID, a.TenantID, a.UserID, string(a.Channel), string(a.Status),
		nullString(a.Detail), a.AttemptedAt,
	)
	if err != nil {
		return nil, apperrors.NewPersistenceError("record_attempt", err)
	}
	return &a, nil
}

// ListAttempts returns the attempts of one notification, visible only to its owner.
func (s *Store) ListAttempts(ctx context.Context, notificationID string, scope models.Scope) ([]models.DeliveryAttempt, error) {
	notificationID, ok := parseID(notificationID)
	if !ok {
		return []models.DeliveryAttempt{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM notification_delivery_attempts
		WHERE notification_id = $1 AND user_id = $2 AND tenant_id = $3
		ORDER BY attempted_at ASC`,
		notificationID, scope.UserID, scope.TenantID,
	)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list_attempts", err)
	}
	return collectAttempts(rows, "list_attempts")
}

// ListFailedAttempts feeds an external redelivery job; newest failures first.
func (s *Store) ListFailedAttempts(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.DeliveryAttempt, error) {
	if limit <= 0 || limit > models.MaxListLimit {
		limit = models.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM notification_delivery_attempts
		WHERE tenant_id = $1 AND status = 'failed' AND attempted_at >= $2
		ORDER BY attempted_at DESC LIMIT $3`,
		tenantID, since, limit,
	)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list_failed_attempts", err)
	}
	return collectAttempts(rows, "list_failed_attempts")
}

func collectAttempts(rows *sql.Rows, op string) ([]models.DeliveryAttempt, error) {
	defer rows.Close()

	attempts := make([]models.DeliveryAttempt, 0)
	for rows.Next() {
		var (
			a      models.DeliveryAttempt
			detail sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.NotificationID, &a.TenantID, &a.UserID, &a.Channel,
			&a.Status, &detail, &a.AttemptedAt); err != nil {
			return nil, apperrors.NewPersistenceError(op, err)
		}
		a.Detail = detail.String
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceError(op, err)
	}
	return attempts, nil
}

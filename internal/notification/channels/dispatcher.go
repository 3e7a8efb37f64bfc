// Package channels implements the in-app, email and push dispatchers.
//
// Dispatchers are failure-isolated: they report a DeliveryResult and never return an
// error, so one channel cannot abort another or the persistence write before it.
package channels

import (
	"context"
	"fmt"

	"ops-notifications/internal/models"
)

// Dispatcher delivers one persisted notification through one channel.
type Dispatcher interface {
	Channel() models.Channel
	Dispatch(ctx context.Context, n *models.Notification) models.DeliveryResult
}

// ContactDirectory resolves the email address and device tokens of a user.
type ContactDirectory interface {
	GetUserContact(ctx context.Context, userID, tenantID string) (*models.UserContact, error)
}

func delivered(ch models.Channel, detail string) models.DeliveryResult {
	return models.DeliveryResult{Channel: ch, Status: models.DeliveryDelivered, Detail: detail}
}

func skipped(ch models.Channel, detail string) models.DeliveryResult {
	return models.DeliveryResult{Channel: ch, Status: models.DeliverySkipped, Detail: detail}
}

func failed(ch models.Channel, format string, args ...interface{}) models.DeliveryResult {
	return models.DeliveryResult{Channel: ch, Status: models.DeliveryFailed, Detail: fmt.Sprintf(format, args...)}
}

func recipientFields(n *models.Notification) map[string]interface{} {
	return map[string]interface{}{
		"notificationId": n.ID,
		"tenantId":       n.TenantID,
		"userId":         n.UserID,
	}
}

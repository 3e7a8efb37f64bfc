// internal/workers/notification/send-bulk-notification/models.go
package sendbulknotification

import (
	"time"

	"ops-notifications/internal/models"
)

type Input struct {
	TenantID string                  `json:"tenantId"`
	Data     models.NotificationData `json:"data"`
	Filters  models.RecipientFilter  `json:"filters"`
}

type Output struct {
	NotificationIDs  []string  `json:"notificationIds"`
	Count            int       `json:"count"`
	FailedDeliveries int       `json:"failedDeliveries"`
	SentAt           time.Time `json:"sentAt"`
}

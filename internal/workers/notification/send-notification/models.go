// internal/workers/notification/send-notification/models.go
package sendnotification

import (
	"time"

	"ops-notifications/internal/models"
)

type Input struct {
	Recipients []models.Recipient      `json:"recipients"`
	Data       models.NotificationData `json:"data"`
}

type Output struct {
	NotificationIDs  []string  `json:"notificationIds"`
	Count            int       `json:"count"`
	FailedDeliveries int       `json:"failedDeliveries"`
	SentAt           time.Time `json:"sentAt"`
}

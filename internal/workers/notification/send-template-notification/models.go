// internal/workers/notification/send-template-notification/models.go
package sendtemplatenotification

import (
	"time"

	"ops-notifications/internal/models"
)

type Input struct {
	TemplateID string                 `json:"templateId"`
	Recipients []models.Recipient     `json:"recipients"`
	Variables  map[string]interface{} `json:"variables"`
}

type Output struct {
	TemplateID       string    `json:"templateId"`
	NotificationIDs  []string  `json:"notificationIds"`
	Count            int       `json:"count"`
	FailedDeliveries int       `json:"failedDeliveries"`
	SentAt           time.Time `json:"sentAt"`
}

// internal/models/delivery.go
package models

import "time"

// DeliveryStatus is the outcome of one channel dispatch.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliverySkipped   DeliveryStatus = "skipped"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryResult is what a dispatcher reports instead of raising.
type DeliveryResult struct {
	Channel Channel        `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	Detail  string         `json:"detail,omitempty"`
}

// DeliveryAttempt is the persisted audit row for a DeliveryResult.
type DeliveryAttempt struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notificationId"`
	TenantID       string         `json:"tenantId"`
	UserID         string         `json:"userId"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	Detail         string         `json:"detail,omitempty"`
	AttemptedAt    time.Time      `json:"attemptedAt"`
}

// UserContact is the slice of a user row the dispatchers need.
type UserContact struct {
	ID         string   `json:"id"`
	TenantID   string   `json:"tenantId"`
	Email      string   `json:"email,omitempty"`
	PushTokens []string `json:"pushTokens,omitempty"`
}

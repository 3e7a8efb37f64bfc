// pkg/registry/schema.go
package registry

import "ops-notifications/internal/models"

// TemplateRegistry is the on-disk catalogue of notification templates seeded into PostgreSQL.
type TemplateRegistry struct {
	Version     string                        `json:"version"`
	LastUpdated string                        `json:"lastUpdated"`
	Templates   []models.NotificationTemplate `json:"templates"`
}

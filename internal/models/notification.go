// internal/models/notification.go
package models

import "time"

// NotificationType is the visual/severity classification of a notification.
type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
)

// Priority only affects email styling.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status is the read state of a stored notification. read is terminal.
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
	StatusAll    Status = "all"
)

// Channel is a delivery mechanism, orthogonal to type and priority.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// AllChannels lists channels in dispatch order.
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush}

func (t NotificationType) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// Notification is one persisted row; one per (recipient, send request).
type Notification struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenantId"`
	UserID    string                 `json:"userId"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      NotificationType       `json:"type"`
	Category  string                 `json:"category"`
	Priority  Priority               `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ActionURL string                 `json:"actionUrl,omitempty"`
	Status    Status                 `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
}

// NotificationData is the already-rendered payload handed to the orchestrator.
type NotificationData struct {
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      NotificationType       `json:"type"`
	Category  string                 `json:"category"`
	Priority  Priority               `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ActionURL string                 `json:"actionUrl,omitempty"`
}

// Recipient exists only for the duration of a send call.
type Recipient struct {
	UserID   string    `json:"userId"`
	TenantID string    `json:"tenantId"`
	Channels []Channel `json:"channels"`
}

// Wants reports whether the recipient requested the channel.
func (r Recipient) Wants(ch Channel) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// NotificationTemplate is read-only input; its lifecycle is managed elsewhere.
type NotificationTemplate struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      NotificationType       `json:"type"`
	Category  string                 `json:"category"`
	Priority  Priority               `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ActionURL string                 `json:"actionUrl,omitempty"`
}

// Scope identifies the owner of a notification. Every read/update/delete is bounded by it.
type Scope struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
}

// ListOptions are the paging/filter parameters for listing a user's notifications.
type ListOptions struct {
	Status      Status `json:"status"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	NewestFirst bool   `json:"newestFirst"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// WithDefaults fills status=all, limit=50, offset=0.
func (o ListOptions) WithDefaults() ListOptions {
	if o.Status == "" {
		o.Status = StatusAll
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Stats is computed from two independent counts and may be momentarily inconsistent.
type Stats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}

// RecipientFilter selects users of a tenant for a bulk send. Empty slices match everything.
type RecipientFilter struct {
	Roles       []string `json:"roles,omitempty"`
	Departments []string `json:"departments,omitempty"`
	Locations   []string `json:"locations,omitempty"`
}

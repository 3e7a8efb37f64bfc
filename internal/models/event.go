// internal/models/event.go
package models

const EventTypeNotification = "notification"

// RealtimeEvent is the frame pushed to connected clients.
type RealtimeEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NotificationEvent wraps a persisted notification; the event carries the stored id.
func NotificationEvent(n *Notification) RealtimeEvent {
	return RealtimeEvent{Type: EventTypeNotification, Data: n}
}

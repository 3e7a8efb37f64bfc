// internal/notification/channels/push.go
package channels

import (
	"context"
	"errors"
	"fmt"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/store"
)

// PushPayload is provider-neutral; senders map it onto their own message format.
type PushPayload struct {
	Title    string
	Body     string
	Priority models.Priority
	Data     map[string]string
}

// PushSender submits one payload to one device token.
type PushSender interface {
	Send(ctx context.Context, token string, payload PushPayload) error
}

type PushDispatcher struct {
	contacts ContactDirectory
	sender   PushSender
	logger   logger.Logger
}

func NewPushDispatcher(contacts ContactDirectory, sender PushSender, log logger.Logger) *PushDispatcher {
	return &PushDispatcher{
		contacts: contacts,
		sender:   sender,
		logger:   log.WithFields(map[string]interface{}{"channel": string(models.ChannelPush)}),
	}
}

func (d *PushDispatcher) Channel() models.Channel {
	return models.ChannelPush
}

func pushPayload(n *models.Notification) PushPayload {
	data := map[string]string{
		"notificationId": n.ID,
		"type":           string(n.Type),
		"category":       n.Category,
		"priority":       string(n.Priority),
	}
	if n.ActionURL != "" {
		data["actionUrl"] = n.ActionURL
	}
	return PushPayload{Title: n.Title, Body: n.Message, Priority: n.Priority, Data: data}
}

// Dispatch sends to every token of the user. A failing token does not stop the rest;
// the result is failed only when no token accepted the message.
func (d *PushDispatcher) Dispatch(ctx context.Context, n *models.Notification) models.DeliveryResult {
	if d.sender == nil {
		d.logger.Warn("push provider not configured, skipping push delivery", recipientFields(n))
		return skipped(models.ChannelPush, "push provider not configured")
	}

	contact, err := d.contacts.GetUserContact(ctx, n.UserID, n.TenantID)
	if errors.Is(err, store.ErrUserNotFound) || (err == nil && len(contact.PushTokens) == 0) {
		d.logger.Warn("no push tokens for user, skipping push delivery", recipientFields(n))
		return skipped(models.ChannelPush, "no push tokens")
	}
	if err != nil {
		fields := recipientFields(n)
		fields["error"] = err
		d.logger.Error("push token lookup failed", fields)
		return failed(models.ChannelPush, "lookup: %v", err)
	}

	payload := pushPayload(n)
	var lastErr error
	failures := 0
	for _, token := range contact.PushTokens {
		if err := d.sender.Send(ctx, token, payload); err != nil {
			failures++
			lastErr = err
			fields := recipientFields(n)
			fields["error"] = err
			fields["token"] = maskToken(token)
			d.logger.Error("push send failed", fields)
		}
	}

	total := len(contact.PushTokens)
	switch {
	case failures == total:
		return failed(models.ChannelPush, "all %d token(s) failed: %v", total, lastErr)
	case failures > 0:
		return delivered(models.ChannelPush, fmt.Sprintf("%d of %d token(s) failed", failures, total))
	default:
		return delivered(models.ChannelPush, fmt.Sprintf("%d token(s)", total))
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// internal/notification/channels/email.go
package channels

import (
	"context"
	"errors"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/store"
)

// EmailMessage is a rendered email ready for a transport.
type EmailMessage struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Priority models.Priority
}

// Mailer is the transport behind the email dispatcher (SMTP or SES).
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailDispatcher struct {
	contacts ContactDirectory
	mailer   Mailer
	footer   string
	logger   logger.Logger
}

func NewEmailDispatcher(contacts ContactDirectory, mailer Mailer, footer string, log logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		contacts: contacts,
		mailer:   mailer,
		footer:   footer,
		logger:   log.WithFields(map[string]interface{}{"channel": string(models.ChannelEmail)}),
	}
}

func (d *EmailDispatcher) Channel() models.Channel {
	return models.ChannelEmail
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, n *models.Notification) models.DeliveryResult {
	contact, err := d.contacts.GetUserContact(ctx, n.UserID, n.TenantID)
	if errors.Is(err, store.ErrUserNotFound) || (err == nil && contact.Email == "") {
		d.logger.Warn("no email address for user, skipping email delivery", recipientFields(n))
		return skipped(models.ChannelEmail, "no email address")
	}
	if err != nil {
		fields := recipientFields(n)
		fields["error"] = err
		d.logger.Error("email recipient lookup failed", fields)
		return failed(models.ChannelEmail, "lookup: %v", err)
	}

	html, text, err := RenderEmail(n, d.footer)
	if err != nil {
		fields := recipientFields(n)
		fields["error"] = err
		d.logger.Error("email render failed", fields)
		return failed(models.ChannelEmail, "render: %v", err)
	}

	err = d.mailer.Send(ctx, EmailMessage{
		To:       contact.Email,
		Subject:  n.Title,
		HTML:     html,
		Text:     text,
		Priority: n.Priority,
	})
	if err != nil {
		fields := recipientFields(n)
		fields["error"] = err
		d.logger.Error("email send failed", fields)
		return failed(models.ChannelEmail, "send: %v", err)
	}

	return delivered(models.ChannelEmail, "")
}

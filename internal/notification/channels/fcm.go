// internal/notification/channels/fcm.go
package channels

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient is the subset of messaging.Client the push sender uses.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NewFCMClient builds a messaging client from a service account file.
func NewFCMClient(ctx context.Context, credentialsFile, projectID string) (*messaging.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: messaging client: %w", err)
	}
	return client, nil
}

// FCMPushSender sends to Firebase registration tokens.
type FCMPushSender struct {
	client FCMClient
}

func NewFCMPushSender(client FCMClient) *FCMPushSender {
	return &FCMPushSender{client: client}
}

func (s *FCMPushSender) Send(ctx context.Context, token string, payload PushPayload) error {
	if _, err := s.client.Send(ctx, fcmMessage(token, payload)); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func fcmMessage(token string, p PushPayload) *messaging.Message {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	if androidPriority(p) == "high" {
		msg.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		}
		msg.APNS.Headers = map[string]string{
			"apns-priority":  "10",
			"apns-push-type": "alert",
		}
	}
	return msg
}
